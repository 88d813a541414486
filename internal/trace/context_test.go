package trace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActive_NoScope(t *testing.T) {
	assert.Nil(t, Active(context.Background()))
}

func TestWithAction_ChildSeesParentDoesNot(t *testing.T) {
	parent := context.Background()
	action := &ActionContext{CorrelationID: "COR-0001", Name: "test", Origin: OriginUser}

	child := WithAction(parent, action)

	assert.Same(t, action, Active(child))
	assert.Nil(t, Active(parent), "entering a scope never mutates the caller's context")
}

func TestWithAction_NestedRestore(t *testing.T) {
	outer := &ActionContext{CorrelationID: "COR-0001", Name: "outer", Origin: OriginUser}
	inner := &ActionContext{CorrelationID: "COR-0002", Name: "inner", Origin: OriginSystem}

	ctx1 := WithAction(context.Background(), outer)
	ctx2 := WithAction(ctx1, inner)

	assert.Same(t, inner, Active(ctx2))
	// After the nested scope "returns", the outer context still holds the
	// outer action - the revert-to-previous guarantee.
	assert.Same(t, outer, Active(ctx1))
}

func TestDetach_ClearsActiveAction(t *testing.T) {
	action := &ActionContext{CorrelationID: "COR-0001", Name: "test", Origin: OriginUser}
	ctx := WithAction(context.Background(), action)

	detached := Detach(ctx)

	assert.Nil(t, Active(detached))
	assert.Same(t, action, Active(ctx), "detach only affects the derived context")
}

func TestGo_CarriesActionAcrossGoroutine(t *testing.T) {
	r := quietRecorder()
	action := r.NewAction("fire and forget", OriginUser, "")

	observed := make(chan *ActionContext, 1)
	err := r.Run(context.Background(), action, func(ctx context.Context) error {
		Go(ctx, func(ctx context.Context) {
			// Runs long after the handler body has returned.
			time.Sleep(5 * time.Millisecond)
			observed <- Active(ctx)
		})
		return nil
	})
	require.NoError(t, err)

	assert.Same(t, action, <-observed, "spawned work observes the originating action")
}

func TestGo_NestedSpawnInheritsSameScope(t *testing.T) {
	r := quietRecorder()
	action := r.NewAction("nested", OriginUser, "")

	observed := make(chan *ActionContext, 1)
	err := r.Run(context.Background(), action, func(ctx context.Context) error {
		Go(ctx, func(ctx context.Context) {
			// A spawns B while running; B captures the same action.
			Go(ctx, func(ctx context.Context) {
				observed <- Active(ctx)
			})
		})
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, action, <-observed)

	// The scope waited for both levels before closing.
	events := r.Events()
	assert.Equal(t, EventActionEnd, events[len(events)-1].Type)
}

func TestGo_WithoutScopeStillRuns(t *testing.T) {
	done := make(chan struct{})
	Go(context.Background(), func(ctx context.Context) {
		assert.Nil(t, Active(ctx))
		close(done)
	})
	<-done
}

func TestRun_ErrorPropagates(t *testing.T) {
	r := quietRecorder()
	action := r.NewAction("failing", OriginSystem, "")

	sentinel := errors.New("device unreachable")
	err := r.Run(context.Background(), action, func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	// Error exits still close the action.
	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventActionEnd, events[1].Type)
}

func TestRun_ConcurrentActionsKeepDistinctAttribution(t *testing.T) {
	r := quietRecorder()
	a := r.NewAction("a", OriginUser, "")
	b := r.NewAction("b", OriginUser, "")

	done := make(chan string, 2)
	run := func(action *ActionContext) {
		_ = r.Run(context.Background(), action, func(ctx context.Context) error {
			ev := r.Record(ctx, EventRestCall, nil)
			done <- ev.CorrelationID
			return nil
		})
	}
	go run(a)
	go run(b)

	got := map[string]bool{<-done: true, <-done: true}
	assert.True(t, got[a.CorrelationID])
	assert.True(t, got[b.CorrelationID])
}
