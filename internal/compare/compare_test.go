package compare

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/c64u/internal/trace"
)

// traceBuilder assembles well-formed event arrays without hand-numbering
// ids on every line.
type traceBuilder struct {
	events []trace.TraceEvent
	nextID int
}

func (b *traceBuilder) add(corr, typ string, origin trace.Origin, data map[string]any) *traceBuilder {
	b.events = append(b.events, trace.TraceEvent{
		ID:            fmt.Sprintf("EVT-%04d", b.nextID),
		Timestamp:     fmt.Sprintf("2026-08-25T10:00:%02d.000Z", b.nextID%60),
		RelativeMs:    int64(b.nextID * 100),
		Type:          typ,
		Origin:        origin,
		CorrelationID: corr,
		Data:          data,
	})
	b.nextID++
	return b
}

func (b *traceBuilder) action(corr, name string, origin trace.Origin, calls ...map[string]any) *traceBuilder {
	b.add(corr, trace.EventActionStart, origin, map[string]any{"name": name})
	for _, c := range calls {
		b.add(corr, trace.EventRestCall, origin, c)
	}
	return b.add(corr, trace.EventActionEnd, origin, nil)
}

func restData(method, url string, extra map[string]any) map[string]any {
	d := map[string]any{"method": method, "url": url}
	for k, v := range extra {
		d[k] = v
	}
	return d
}

func TestCompareTraces_IdenticalTracesMatch(t *testing.T) {
	build := func() []trace.TraceEvent {
		var b traceBuilder
		b.action("COR-0000", "reset machine", trace.OriginSystem,
			restData("PUT", "/v1/machine:reset", map[string]any{"status": 200}))
		return b.events
	}

	res := CompareTraces(build(), build())
	assert.Empty(t, res.Errors)
	assert.True(t, res.Ok())
}

func TestCompareTraces_ToleratesLoopbackPortDrift(t *testing.T) {
	build := func(port int) []trace.TraceEvent {
		var b traceBuilder
		b.action("COR-0000", "mount disk", trace.OriginSystem,
			restData("POST", fmt.Sprintf("http://127.0.0.1:%d/v1/machine:writemem?address=0400", port),
				map[string]any{"status": 200}))
		return b.events
	}

	res := CompareTraces(build(8081), build(9934))
	assert.Empty(t, res.Errors, "loopback port numbers are volatile")
}

func TestCompareTraces_ToleratesEmbeddedTimestamps(t *testing.T) {
	build := func(stamp string) []trace.TraceEvent {
		var b traceBuilder
		b.action("COR-0000", "read version", trace.OriginSystem,
			restData("POST", "/v1/version:refresh", map[string]any{
				"status": 200,
				"body":   map[string]any{"version": "3.12", "timestamp": stamp},
			}))
		return b.events
	}

	res := CompareTraces(build("2026-08-25T10:00:00Z"), build("2026-08-25T11:30:17Z"))
	assert.Empty(t, res.Errors, "timestamp-named body fields are stripped before comparison")
}

func TestCompareTraces_ToleratesQueryParameterOrder(t *testing.T) {
	var exp, act traceBuilder
	exp.action("COR-0000", "read memory", trace.OriginSystem,
		restData("GET", "/v1/machine:readmem?address=00A0&length=3", map[string]any{"status": 200}))
	act.action("COR-0000", "read memory", trace.OriginSystem,
		restData("GET", "/v1/machine:readmem?length=3&address=00A0", map[string]any{"status": 200}))

	res := CompareTraces(exp.events, act.events)
	assert.Empty(t, res.Errors)
}

func TestCompareTraces_MethodDifferenceIsAnError(t *testing.T) {
	build := func(method string) []trace.TraceEvent {
		var b traceBuilder
		b.action("COR-0000", "poke screen", trace.OriginSystem,
			restData(method, "/v1/machine:writemem?address=0400", map[string]any{"status": 200}))
		return b.events
	}

	res := CompareTraces(build("GET"), build("POST"))
	require.NotEmpty(t, res.Errors)
	assert.NotEmpty(t, res.Diff.MissingActions)
	assert.NotEmpty(t, res.Diff.UnexpectedActions)
}

func TestCompareTraces_NoisyActionsCollapse(t *testing.T) {
	// Two polls of the same endpoint against different backend targets on
	// the expected side, one on the actual side: one representative per
	// signature suffices.
	var exp, act traceBuilder
	exp.action("COR-0000", "rest.get", trace.OriginSystem,
		restData("GET", "/v1/info", map[string]any{"status": 200, "target": "primary"}))
	exp.action("COR-0001", "rest.get", trace.OriginSystem,
		restData("GET", "/v1/info", map[string]any{"status": 200, "target": "fallback"}))
	act.action("COR-0000", "rest.get", trace.OriginSystem,
		restData("GET", "/v1/info", map[string]any{"status": 200, "target": "primary"}))

	res := CompareTraces(exp.events, act.events)
	assert.Empty(t, res.Errors)
}

func TestCompareTraces_MissingNoisySignatureStillReported(t *testing.T) {
	// Polling collapses, but a poll that never happened at all is a
	// genuine difference.
	var exp, act traceBuilder
	exp.action("COR-0000", "rest.get", trace.OriginSystem,
		restData("GET", "/v1/info", map[string]any{"status": 200}))
	act.action("COR-0000", "rest.get", trace.OriginSystem,
		restData("GET", "/v1/drives", map[string]any{"status": 200}))

	res := CompareTraces(exp.events, act.events)
	assert.NotEmpty(t, res.Errors)
	assert.Len(t, res.Diff.MissingActions, 1)
}

func TestCompareTraces_PartialBodyMatch(t *testing.T) {
	var exp, act traceBuilder
	exp.action("COR-0000", "update config", trace.OriginSystem,
		restData("POST", "/v1/configs/audio", map[string]any{
			"body": map[string]any{"volume_left": 10},
		}))
	// Actual carries extra body fields and a status the expected side
	// never pinned down.
	act.action("COR-0000", "update config", trace.OriginSystem,
		restData("POST", "/v1/configs/audio", map[string]any{
			"status": 200,
			"body":   map[string]any{"volume_left": 10, "volume_right": 10},
		}))

	res := CompareTraces(exp.events, act.events)
	assert.Empty(t, res.Errors, "absent expected fields match anything")
}

func TestCompareTraces_UserSpanGroupingMergesSubActions(t *testing.T) {
	build := func(name string) []trace.TraceEvent {
		var b traceBuilder
		b.add("COR-0000", trace.EventActionStart, trace.OriginUser, map[string]any{"name": name})
		// A system sub-action caused by the gesture: merged into the span.
		b.add("COR-0001", trace.EventActionStart, trace.OriginSystem, map[string]any{"name": "rest.put"})
		b.add("COR-0001", trace.EventRestCall, trace.OriginSystem, restData("PUT", "/v1/machine:reset", map[string]any{"status": 204}))
		b.add("COR-0001", trace.EventActionEnd, trace.OriginSystem, nil)
		b.add("COR-0000", trace.EventActionEnd, trace.OriginUser, nil)
		return b.events
	}

	// User-grouped action names may drift: labels merge sub-actions.
	res := CompareTraces(build("click Reset"), build("click Reset machine"))
	assert.Empty(t, res.Errors)
}

func TestCompareTraces_OrderingViolationDetected(t *testing.T) {
	var b traceBuilder
	// The REST event lands before its own action-start.
	b.add("COR-0000", trace.EventRestCall, trace.OriginSystem,
		restData("PUT", "/v1/machine:pause", map[string]any{"status": 204}))
	b.add("COR-0000", trace.EventActionStart, trace.OriginSystem, map[string]any{"name": "pause machine"})
	b.add("COR-0000", trace.EventActionEnd, trace.OriginSystem, nil)

	res := CompareTraces(b.events, b.events)
	require.NotEmpty(t, res.Diff.OrderingViolations)
	assert.Contains(t, res.Diff.OrderingViolations[0], "pause machine")
	assert.Contains(t, res.Diff.OrderingViolations[0], "precedes action-start")
}

func TestCompareTraces_UserActionsMayOutliveTheirEnd(t *testing.T) {
	var b traceBuilder
	b.add("COR-0000", trace.EventActionStart, trace.OriginUser, map[string]any{"name": "click Save"})
	b.add("COR-0000", trace.EventActionEnd, trace.OriginUser, nil)
	// Deferred work attributed to the gesture, landing after action-end.
	b.add("COR-0000", trace.EventRestCall, trace.OriginUser,
		restData("POST", "/v1/machine:writemem?address=0400", map[string]any{"status": 200}))

	res := CompareTraces(b.events, b.events)
	assert.Empty(t, res.Diff.OrderingViolations)
}

func TestCompareTraces_MalformedAndDuplicateIDs(t *testing.T) {
	var b traceBuilder
	b.action("COR-0000", "noop", trace.OriginSystem,
		restData("GET", "/v1/version", map[string]any{"status": 200}))
	events := b.events
	events[0].ID = "EVT-1" // too short
	events[1].ID = events[2].ID

	res := CompareTraces(events, events)
	var malformed, duplicate bool
	for _, e := range res.Errors {
		if strings.Contains(e, "malformed event id") {
			malformed = true
		}
		if strings.Contains(e, "duplicate event id") {
			duplicate = true
		}
	}
	assert.True(t, malformed)
	assert.True(t, duplicate)
	// Validation never aborts comparison: the diff is still populated.
	assert.NotEmpty(t, res.Diff.ActualActions)
}

func TestCompareTraces_UnknownNameMatchesAnything(t *testing.T) {
	var exp, act traceBuilder
	// Expected action never saw its start event.
	exp.add("COR-0000", trace.EventRestCall, trace.OriginSystem,
		restData("PUT", "/v1/machine:resume", map[string]any{"status": 204}))
	act.action("COR-0000", "resume machine", trace.OriginSystem,
		restData("PUT", "/v1/machine:resume", map[string]any{"status": 204}))

	res := CompareTraces(exp.events, act.events)
	assert.Empty(t, res.Errors)
}

func TestFormatTraceErrors(t *testing.T) {
	var exp, act traceBuilder
	exp.action("COR-0000", "write memory", trace.OriginSystem,
		restData("POST", "/v1/machine:writemem?address=0400", nil))
	act.action("COR-0000", "write memory", trace.OriginSystem,
		restData("POST", "/v1/machine:writemem?address=0800", nil))

	res := CompareTraces(exp.events, act.events)
	require.NotEmpty(t, res.Errors)

	out := FormatTraceErrors(res.Errors, "scenario write-memory", res.Diff)
	assert.Contains(t, out, "scenario write-memory")
	assert.Contains(t, out, "missing actions:     1")
	assert.Contains(t, out, "unexpected actions:  1")
	assert.Contains(t, out, "ordering violations: 0")
	assert.Contains(t, out, "write memory")
}

func TestFormatTraceErrors_CleanResult(t *testing.T) {
	out := FormatTraceErrors(nil, "scenario clean", Diff{})
	assert.Contains(t, out, "traces match")
}
