package interact

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/c64u/internal/trace"
)

// EventKind classifies the primary interaction gestures worth tracing.
type EventKind string

const (
	EventPress   EventKind = "press"   // activation: click, tap, Enter
	EventChange  EventKind = "change"  // value change on a form control
	EventRelease EventKind = "release" // pointer release on slider-like controls
)

// component tag stamped on actions opened by the capture layer.
const componentTag = "GlobalInteraction"

// Event is one UI interaction as delivered by the host UI layer.
type Event struct {
	Kind EventKind
	// Path is the composed event path, target first.
	Path []*Element
	// Traced marks events already handled by a capture listener, so the
	// same gesture is never traced twice.
	Traced bool
}

// Capture opens a user-origin action around each qualifying interaction
// event, so everything the application's own handler does - including
// work it spawns and does not await - is attributed to that gesture.
type Capture struct {
	rec       *trace.Recorder
	installed atomic.Bool
	logger    *slog.Logger
}

// NewCapture creates a capture recording onto rec.
func NewCapture(rec *trace.Recorder, logger *slog.Logger) *Capture {
	return &Capture{rec: rec, logger: logger}
}

// Install marks the capture as the process-wide interaction listener.
// Returns false when already installed; installing twice is a no-op, not
// an error.
func (c *Capture) Install() bool {
	if !c.installed.CompareAndSwap(false, true) {
		c.logger.Debug("interaction capture already installed")
		return false
	}
	c.logger.Info("interaction capture installed")
	return true
}

// Installed reports whether Install has been called.
func (c *Capture) Installed() bool {
	return c.installed.Load()
}

// Observe runs handler for ev, wrapped in a user-origin action named
// "<verb> <label>". It runs in the capture phase: the application handler
// passed in executes inside the opened scope, so even fire-and-forget
// work it starts observes the action as ambient.
//
// Events already marked traced, and events targeting diagnostics-open
// triggers, dispatch without opening an action.
func (c *Capture) Observe(ctx context.Context, ev *Event, handler func(context.Context) error) error {
	if ev.Traced {
		return handler(ctx)
	}
	ev.Traced = true

	el := ResolveInteractive(ev.Path)
	if el == nil || el.DiagnosticsTrigger {
		return handler(ctx)
	}

	name := verbFor(ev.Kind) + " " + el.PreferredLabel()
	action := c.rec.NewAction(name, trace.OriginUser, componentTag)
	c.logger.Debug("user interaction", "action", name, "correlation", action.CorrelationID)
	return c.rec.Run(ctx, action, handler)
}

func verbFor(kind EventKind) string {
	switch kind {
	case EventChange:
		return "change"
	case EventRelease:
		return "adjust"
	default:
		return "click"
	}
}
