// Package harness provides test helpers for trace-based regression
// testing: scripted scenario recording with a deterministic clock,
// golden trace snapshots, and comparison assertions.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/c64u/internal/trace"
)

// componentTag stamps actions opened by the harness itself.
const componentTag = "harness"

// clockStep is the fixed advance per clock reading. Large enough that
// relativeMs values are distinct, small enough to look like a real run.
const clockStep = 10 * time.Millisecond

// Step is one scripted action of a scenario.
type Step struct {
	// Action names the action the step runs under.
	Action string
	// Origin defaults to system.
	Origin trace.Origin
	// Run performs the step's work inside the opened action scope.
	// May be nil for an empty action.
	Run func(ctx context.Context, rec *trace.Recorder) error
}

// Scenario is a scripted sequence of actions recorded against a fresh
// recorder.
type Scenario struct {
	Name  string
	Steps []Step
}

// Result holds the recorded trace of a scenario run.
type Result struct {
	Events []trace.TraceEvent
}

// Run executes the scenario on a fresh recorder driven by a fixed
// deterministic clock, so two runs of the same scenario produce
// byte-identical traces.
func Run(s *Scenario) (*Result, error) {
	rec := trace.NewRecorder(
		trace.WithClock(stepClock()),
		trace.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	for _, step := range s.Steps {
		origin := step.Origin
		if origin == "" {
			origin = trace.OriginSystem
		}
		action := rec.NewAction(step.Action, origin, componentTag)
		err := rec.Run(context.Background(), action, func(ctx context.Context) error {
			if step.Run == nil {
				return nil
			}
			return step.Run(ctx, rec)
		})
		if err != nil {
			return nil, fmt.Errorf("scenario %s: step %q: %w", s.Name, step.Action, err)
		}
	}

	return &Result{Events: rec.Events()}, nil
}

// stepClock returns a clock that starts at a fixed instant and advances
// by clockStep per reading.
func stepClock() func() time.Time {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var n atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)-1) * clockStep)
	}
}
