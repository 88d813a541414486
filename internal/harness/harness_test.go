package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/c64u/internal/compare"
	"github.com/roach88/c64u/internal/trace"
)

func resetScenario() *Scenario {
	return &Scenario{
		Name: "reset-machine",
		Steps: []Step{
			{
				Action: "reset machine",
				Run: func(ctx context.Context, rec *trace.Recorder) error {
					rec.Record(ctx, trace.EventRestCall, map[string]any{
						"method": "PUT",
						"url":    "/v1/machine:reset",
						"status": 204,
					})
					return nil
				},
			},
		},
	}
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(resetScenario())
	require.NoError(t, err)
	second, err := Run(resetScenario())
	require.NoError(t, err)

	assert.Equal(t, first.Events, second.Events, "same scenario, same trace")
	require.Len(t, first.Events, 3)
	assert.Equal(t, trace.EventActionStart, first.Events[0].Type)
	assert.Equal(t, trace.EventRestCall, first.Events[1].Type)
	assert.Equal(t, trace.EventActionEnd, first.Events[2].Type)
}

func TestRun_StepErrorIsWrapped(t *testing.T) {
	s := &Scenario{
		Name: "failing",
		Steps: []Step{
			{Action: "boom", Run: func(context.Context, *trace.Recorder) error {
				return assert.AnError
			}},
		},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `step "boom"`)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRunWithGolden(t *testing.T) {
	require.NoError(t, RunWithGolden(t, resetScenario()))
}

// recordingT captures assertion failures.
type recordingT struct {
	failures []string
	fatal    bool
}

func (r *recordingT) Helper() {}
func (r *recordingT) Errorf(format string, args ...any) {
	r.failures = append(r.failures, format)
}
func (r *recordingT) FailNow() { r.fatal = true }

func TestAssertTracesMatch(t *testing.T) {
	result, err := Run(resetScenario())
	require.NoError(t, err)

	rt := &recordingT{}
	assert.True(t, AssertTracesMatch(rt, "reset", result.Events, result.Events, compare.Options{}))
	assert.Empty(t, rt.failures)
}

func TestRequireTracesMatch_FailsOnDiff(t *testing.T) {
	result, err := Run(resetScenario())
	require.NoError(t, err)

	other, err := Run(&Scenario{
		Name: "other",
		Steps: []Step{
			{Action: "reboot machine", Run: func(ctx context.Context, rec *trace.Recorder) error {
				rec.Record(ctx, trace.EventRestCall, map[string]any{
					"method": "PUT",
					"url":    "/v1/machine:reboot",
					"status": 204,
				})
				return nil
			}},
		},
	})
	require.NoError(t, err)

	rt := &recordingT{}
	RequireTracesMatch(rt, "reset", result.Events, other.Events, compare.Options{})
	assert.NotEmpty(t, rt.failures)
	assert.True(t, rt.fatal)
}
