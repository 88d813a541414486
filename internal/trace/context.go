package trace

import (
	"context"
	"sync"
)

// scopeKey is the context key for the active action scope.
type scopeKey struct{}

// actionScope tracks one open action and the goroutines spawned under it.
// The action's end event is not recorded until the scope's wait group has
// drained, so fire-and-forget work started inside the scope is still
// attributed to it.
type actionScope struct {
	action *ActionContext
	wg     sync.WaitGroup
}

// WithAction returns a context carrying action as the active action.
//
// The returned context is a child; the parent is untouched, so when the
// callee returns the caller still holds its own scope.
func WithAction(ctx context.Context, action *ActionContext) context.Context {
	return context.WithValue(ctx, scopeKey{}, &actionScope{action: action})
}

// Detach returns a context with no active action. New work derived from it
// records under synthesized system actions; scopes already captured by
// spawned goroutines are unaffected.
func Detach(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, (*actionScope)(nil))
}

// Active returns the action carried by ctx, or nil when none is in scope.
func Active(ctx context.Context) *ActionContext {
	if s := scopeFrom(ctx); s != nil {
		return s.action
	}
	return nil
}

// Go spawns fn on its own goroutine, carrying ctx's active action with it.
//
// When ctx belongs to an open action scope the spawned work is tracked:
// Recorder.Run does not record the action's end event until every spawned
// goroutine has returned. Outside any scope this degrades to a plain go
// statement.
func Go(ctx context.Context, fn func(context.Context)) {
	s := scopeFrom(ctx)
	if s == nil {
		go fn(ctx)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
}

func scopeFrom(ctx context.Context) *actionScope {
	s, _ := ctx.Value(scopeKey{}).(*actionScope)
	return s
}
