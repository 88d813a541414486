package trace

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Recorder is the append-only trace log for one session.
//
// Events are appended in the order the underlying operations complete.
// Events() and Export() return the deterministic three-level ordering
// (relativeMs, parsed timestamp, insertion index).
//
// Thread-safety: all methods are safe for concurrent use. The recorder is
// the one piece of shared mutable state in the tracing core; everything
// else travels by value on contexts.
type Recorder struct {
	mu       sync.Mutex
	ids      *Allocator
	now      func() time.Time
	start    time.Time // zero until the first event arms the session
	events   []TraceEvent
	observer func(TraceEvent)
	logger   *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithLogger overrides the recorder's logger.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

// NewRecorder creates an empty session recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		ids:    NewAllocator(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewAction creates an action context with a fresh correlation id.
// The action is not active until entered via Run or WithAction.
func (r *Recorder) NewAction(name string, origin Origin, component string) *ActionContext {
	return &ActionContext{
		CorrelationID: r.ids.NextCorrelationID(),
		Name:          name,
		Origin:        origin,
		Component:     component,
		StartedAt:     r.now(),
	}
}

// Run opens action as the active scope, records its action-start event,
// invokes fn, and records action-end once fn has returned and every
// goroutine spawned under the scope (via Go) has drained.
//
// The end event is recorded even when fn panics, so a trace never carries
// an unmatched action-start. The caller's context is never mutated; on any
// exit path the caller still observes whatever action was active before.
func (r *Recorder) Run(ctx context.Context, action *ActionContext, fn func(context.Context) error) error {
	scope := &actionScope{action: action}
	runCtx := context.WithValue(ctx, scopeKey{}, scope)

	r.append(action, EventActionStart, map[string]any{
		"name":      action.Name,
		"component": action.Component,
	})
	defer func() {
		scope.wg.Wait()
		r.append(action, EventActionEnd, map[string]any{
			"name": action.Name,
		})
	}()

	return fn(runCtx)
}

// Record appends an event attributed to ctx's active action. When no
// action is in scope a system-origin action is synthesized on the fly so
// the event is still attributable to something.
func (r *Recorder) Record(ctx context.Context, eventType string, data map[string]any) TraceEvent {
	action := Active(ctx)
	if action == nil {
		action = r.synthesize()
	}
	return r.append(action, eventType, data)
}

// synthesize creates a throwaway system action for unattributed work.
func (r *Recorder) synthesize() *ActionContext {
	return &ActionContext{
		CorrelationID: r.ids.NextCorrelationID(),
		Name:          "unknown",
		Origin:        OriginSystem,
		StartedAt:     r.now(),
	}
}

func (r *Recorder) append(action *ActionContext, eventType string, data map[string]any) TraceEvent {
	if data == nil {
		data = map[string]any{}
	}

	r.mu.Lock()
	now := r.now()
	if r.start.IsZero() {
		r.start = now
	}
	ev := TraceEvent{
		ID:            r.ids.NextEventID(),
		Timestamp:     now.UTC().Format(timestampLayout),
		RelativeMs:    now.Sub(r.start).Milliseconds(),
		Type:          eventType,
		Origin:        action.Origin,
		CorrelationID: action.CorrelationID,
		Data:          data,
	}
	r.events = append(r.events, ev)
	observer := r.observer
	r.mu.Unlock()

	r.logger.Debug("trace event",
		"id", ev.ID,
		"type", ev.Type,
		"correlation", ev.CorrelationID)

	if observer != nil {
		observer(ev)
	}
	return ev
}

// Events returns a sorted copy of the session trace.
//
// Primary key relativeMs, secondary key parsed timestamp; sort stability
// preserves insertion order as the final tie-break.
func (r *Recorder) Events() []TraceEvent {
	r.mu.Lock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	r.mu.Unlock()

	SortEvents(out)
	return out
}

// SortEvents applies the three-level trace ordering in place: relativeMs,
// then parsed timestamp, then original position (via stability).
func SortEvents(events []TraceEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].RelativeMs != events[j].RelativeMs {
			return events[i].RelativeMs < events[j].RelativeMs
		}
		ti, tj := parseTimestamp(events[i].Timestamp), parseTimestamp(events[j].Timestamp)
		return ti.Before(tj)
	})
}

// Export serializes the sorted session trace to JSON.
func (r *Recorder) Export() ([]byte, error) {
	return MarshalEvents(r.Events())
}

// MarshalEvents serializes events to the trace.json wire format.
func MarshalEvents(events []TraceEvent) ([]byte, error) {
	return json.MarshalIndent(events, "", "  ")
}

// Len reports the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Clear drops all recorded events and re-arms the relative-time base.
// Id counters are untouched.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.start = time.Time{}
}

// ResetIDs rebases the id counters without touching recorded events.
func (r *Recorder) ResetIDs(eventStart, correlationStart int64) {
	r.ids.Reset(eventStart, correlationStart)
}

// ResetSession clears the event log and rebases the id counters, giving a
// deterministic starting point for scripted test runs.
func (r *Recorder) ResetSession(eventStart, correlationStart int64) {
	r.Clear()
	r.ids.Reset(eventStart, correlationStart)
}

// SetObserver registers a callback invoked for every appended event.
// Used by the debug bridge to stream events to attached tooling. Pass nil
// to remove the observer. The callback runs outside the recorder lock.
func (r *Recorder) SetObserver(fn func(TraceEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}
