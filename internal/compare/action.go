package compare

import (
	"fmt"

	"github.com/roach88/c64u/internal/trace"
)

// RestCall is one normalized REST request/response extracted from a
// rest-call event.
type RestCall struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Body   any    `json:"body,omitempty"`
	Status any    `json:"status,omitempty"`
	Target string `json:"target,omitempty"`

	// eventIndex is the position of the originating event in the sorted
	// event array, for the ordering check.
	eventIndex int
}

// FtpOp is one normalized FTP operation extracted from an ftp-op event.
type FtpOp struct {
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`

	eventIndex int
}

// Action is one logical unit of comparison: a correlation's events, or a
// whole user gesture's span.
type Action struct {
	CorrelationID string       `json:"correlationId"`
	Name          string       `json:"name"`
	Origin        trace.Origin `json:"origin"`
	RestCalls     []RestCall   `json:"restCalls,omitempty"`
	FtpOps        []FtpOp      `json:"ftpOps,omitempty"`

	// StartIndex and EndIndex are the positions of the action-start and
	// action-end events in the sorted event array, or -1 when absent.
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
}

// Label is the short human-readable form used in diff reports.
func (a Action) Label() string {
	return fmt.Sprintf("%s %q (%d rest, %d ftp)", a.CorrelationID, a.Name, len(a.RestCalls), len(a.FtpOps))
}

// actionNameUnknown is assigned to actions whose correlation never saw an
// action-start event.
const actionNameUnknown = "unknown"

// GroupActions groups normalized, sorted events into actions. When both
// event arrays contain at least one user-origin action-start, user-gesture
// spans are the more meaningful unit; otherwise both sides group
// per-correlation. The choice is made symmetrically so the two sides are
// always grouped the same way.
func GroupActions(expected, actual []trace.TraceEvent) (expActions, actActions []Action) {
	if hasUserStart(expected) && hasUserStart(actual) {
		return groupByUserSpans(expected), groupByUserSpans(actual)
	}
	return groupByCorrelation(expected), groupByCorrelation(actual)
}

func hasUserStart(events []trace.TraceEvent) bool {
	for _, ev := range events {
		if ev.Type == trace.EventActionStart && ev.Origin == trace.OriginUser {
			return true
		}
	}
	return false
}

// groupByCorrelation builds one action per correlation id, in order of
// first appearance.
func groupByCorrelation(events []trace.TraceEvent) []Action {
	byID := make(map[string]*Action)
	var order []string

	get := func(id string) *Action {
		if a, ok := byID[id]; ok {
			return a
		}
		a := &Action{
			CorrelationID: id,
			Name:          actionNameUnknown,
			Origin:        trace.OriginSystem,
			StartIndex:    -1,
			EndIndex:      -1,
		}
		byID[id] = a
		order = append(order, id)
		return a
	}

	for i, ev := range events {
		a := get(ev.CorrelationID)
		applyEvent(a, i, ev)
	}

	out := make([]Action, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// groupByUserSpans assigns every event between one user-origin
// action-start and the next to that gesture, merging the system
// sub-actions it caused under the gesture's label. Events before the first
// user gesture keep their per-correlation grouping.
func groupByUserSpans(events []trace.TraceEvent) []Action {
	firstUser := -1
	for i, ev := range events {
		if ev.Type == trace.EventActionStart && ev.Origin == trace.OriginUser {
			firstUser = i
			break
		}
	}
	if firstUser < 0 {
		return groupByCorrelation(events)
	}

	out := groupByCorrelation(events[:firstUser])

	var current *Action
	for i := firstUser; i < len(events); i++ {
		ev := events[i]
		if ev.Type == trace.EventActionStart && ev.Origin == trace.OriginUser {
			if current != nil {
				out = append(out, *current)
			}
			current = &Action{
				CorrelationID: ev.CorrelationID,
				Name:          nameFromEvent(ev),
				Origin:        trace.OriginUser,
				StartIndex:    i,
				EndIndex:      -1,
			}
			continue
		}
		switch ev.Type {
		case trace.EventActionEnd:
			if current != nil && ev.CorrelationID == current.CorrelationID {
				current.EndIndex = i
			}
		default:
			applyEvent(current, i, ev)
		}
	}
	if current != nil {
		out = append(out, *current)
	}
	return out
}

// applyEvent folds one event into the action it belongs to.
func applyEvent(a *Action, index int, ev trace.TraceEvent) {
	if a == nil {
		return
	}
	switch ev.Type {
	case trace.EventActionStart:
		if a.StartIndex < 0 {
			a.StartIndex = index
			a.Name = nameFromEvent(ev)
			a.Origin = ev.Origin
		}
	case trace.EventActionEnd:
		a.EndIndex = index
	case trace.EventRestCall:
		a.RestCalls = append(a.RestCalls, restCallFrom(index, ev))
	case trace.EventFtpOp:
		a.FtpOps = append(a.FtpOps, ftpOpFrom(index, ev))
	}
}

func nameFromEvent(ev trace.TraceEvent) string {
	if name, ok := ev.Data["name"].(string); ok && name != "" {
		return name
	}
	return actionNameUnknown
}

func restCallFrom(index int, ev trace.TraceEvent) RestCall {
	c := RestCall{eventIndex: index}
	if v, ok := ev.Data["method"].(string); ok {
		c.Method = v
	}
	if v, ok := ev.Data["url"].(string); ok {
		c.URL = NormalizeURL(v)
	}
	if v, ok := ev.Data["target"].(string); ok {
		c.Target = v
	}
	c.Body = ev.Data["body"]
	c.Status = ev.Data["status"]
	return c
}

func ftpOpFrom(index int, ev trace.TraceEvent) FtpOp {
	op := FtpOp{eventIndex: index}
	if v, ok := ev.Data["operation"].(string); ok {
		op.Operation = v
	}
	if v, ok := ev.Data["path"].(string); ok {
		op.Path = v
	}
	if v, ok := ev.Data["error"].(string); ok {
		op.Error = v
	}
	op.Result = ev.Data["result"]
	return op
}
