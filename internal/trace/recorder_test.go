package trace

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock returns a deterministic clock advancing stepMs per call.
func testClock(start time.Time, stepMs int64) func() time.Time {
	calls := int64(0)
	return func() time.Time {
		t := start.Add(time.Duration(calls*stepMs) * time.Millisecond)
		calls++
		return t
	}
}

func quietRecorder(opts ...RecorderOption) *Recorder {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewRecorder(opts...)
}

func TestRecorder_RecordWithoutAction_SynthesizesSystem(t *testing.T) {
	r := quietRecorder()

	ev := r.Record(context.Background(), EventRestCall, map[string]any{"method": "GET"})

	assert.Equal(t, "EVT-0000", ev.ID)
	assert.Equal(t, OriginSystem, ev.Origin)
	assert.Equal(t, "COR-0000", ev.CorrelationID, "unattributed events get a synthesized correlation")
}

func TestRecorder_RecordInsideAction(t *testing.T) {
	r := quietRecorder()
	action := r.NewAction("click Save", OriginUser, "GlobalInteraction")

	err := r.Run(context.Background(), action, func(ctx context.Context) error {
		ev := r.Record(ctx, EventRestCall, nil)
		assert.Equal(t, action.CorrelationID, ev.CorrelationID)
		assert.Equal(t, OriginUser, ev.Origin)
		return nil
	})
	require.NoError(t, err)

	events := r.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventActionStart, events[0].Type)
	assert.Equal(t, EventRestCall, events[1].Type)
	assert.Equal(t, EventActionEnd, events[2].Type)

	// Every event of the action shares its correlation id.
	for _, ev := range events {
		assert.Equal(t, action.CorrelationID, ev.CorrelationID)
	}
}

func TestRecorder_ActionEndWaitsForSpawnedWork(t *testing.T) {
	r := quietRecorder()
	action := r.NewAction("load disk", OriginUser, "")

	done := make(chan struct{})
	err := r.Run(context.Background(), action, func(ctx context.Context) error {
		// Fire-and-forget: not awaited by the handler body.
		Go(ctx, func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			r.Record(ctx, EventRestCall, map[string]any{"method": "POST"})
			close(done)
		})
		return nil
	})
	require.NoError(t, err)
	<-done

	events := r.Events()
	require.Len(t, events, 3)

	// The spawned call landed between start and end: the scope did not
	// close until the continuation graph drained.
	assert.Equal(t, EventActionStart, events[0].Type)
	assert.Equal(t, EventRestCall, events[1].Type)
	assert.Equal(t, action.CorrelationID, events[1].CorrelationID)
	assert.Equal(t, EventActionEnd, events[2].Type)
}

func TestRecorder_RunRecordsEndOnPanic(t *testing.T) {
	r := quietRecorder()
	action := r.NewAction("explode", OriginSystem, "")

	assert.Panics(t, func() {
		_ = r.Run(context.Background(), action, func(ctx context.Context) error {
			panic("boom")
		})
	})

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventActionStart, events[0].Type)
	assert.Equal(t, EventActionEnd, events[1].Type, "no unmatched action-start after a panic")
}

func TestRecorder_ThreeLevelSort(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := quietRecorder()

	// Hand-build events exercising all three sort keys.
	events := []TraceEvent{
		{ID: "EVT-0002", RelativeMs: 5, Timestamp: base.Add(5 * time.Millisecond).Format(timestampLayout)},
		{ID: "EVT-0000", RelativeMs: 9, Timestamp: base.Add(9 * time.Millisecond).Format(timestampLayout)},
		{ID: "EVT-0001", RelativeMs: 5, Timestamp: base.Add(4 * time.Millisecond).Format(timestampLayout)},
		{ID: "EVT-0003", RelativeMs: 5, Timestamp: base.Add(4 * time.Millisecond).Format(timestampLayout)},
	}
	SortEvents(events)

	var order []string
	for _, ev := range events {
		order = append(order, ev.ID)
	}
	// relativeMs first; within 5ms the earlier timestamp wins; equal
	// timestamps keep insertion order (EVT-0001 before EVT-0003).
	assert.Equal(t, []string{"EVT-0001", "EVT-0003", "EVT-0002", "EVT-0000"}, order)
	_ = r
}

func TestRecorder_RelativeMs(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := quietRecorder(WithClock(testClock(base, 100)))

	ctx := context.Background()
	first := r.Record(ctx, EventRestCall, nil)
	second := r.Record(ctx, EventRestCall, nil)

	assert.Equal(t, int64(0), first.RelativeMs, "first event defines the session base")
	assert.Greater(t, second.RelativeMs, int64(0))
}

func TestRecorder_ExportRoundTrip(t *testing.T) {
	r := quietRecorder()
	r.Record(context.Background(), EventLiveness, map[string]any{"decision": "healthy"})

	out, err := r.Export()
	require.NoError(t, err)

	var decoded []TraceEvent
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, EventLiveness, decoded[0].Type)
	assert.Equal(t, "healthy", decoded[0].Data["decision"])
}

func TestRecorder_ResetSession(t *testing.T) {
	r := quietRecorder()
	r.Record(context.Background(), EventRestCall, nil)
	r.Record(context.Background(), EventRestCall, nil)
	require.Equal(t, 2, r.Len())

	r.ResetSession(0, 0)
	assert.Equal(t, 0, r.Len())

	ev := r.Record(context.Background(), EventRestCall, nil)
	assert.Equal(t, "EVT-0000", ev.ID, "counters rebase with the session")
	assert.Equal(t, int64(0), ev.RelativeMs, "relative base re-arms after reset")
}

func TestRecorder_Observer(t *testing.T) {
	r := quietRecorder()
	var got []string
	r.SetObserver(func(ev TraceEvent) { got = append(got, ev.Type) })

	r.Record(context.Background(), EventRestCall, nil)
	r.Record(context.Background(), EventFtpOp, nil)
	r.SetObserver(nil)
	r.Record(context.Background(), EventError, nil)

	assert.Equal(t, []string{EventRestCall, EventFtpOp}, got)
}
