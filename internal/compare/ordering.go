package compare

import (
	"fmt"

	"github.com/roach88/c64u/internal/trace"
)

// checkOrdering verifies causal ordering inside each actual action: no
// REST/FTP event may precede the action's own start, non-user actions may
// not record past their own end (user gestures legitimately outlive their
// handler through deferred work), and start must precede end. Violations
// are reported per action, independent of the matching step.
func checkOrdering(actions []Action) []string {
	var violations []string
	report := func(a Action, format string, args ...any) {
		violations = append(violations, fmt.Sprintf("action %s %q: %s", a.CorrelationID, a.Name, fmt.Sprintf(format, args...)))
	}

	for _, a := range actions {
		if a.StartIndex >= 0 && a.EndIndex >= 0 && a.EndIndex <= a.StartIndex {
			report(a, "action-end at index %d does not follow action-start at index %d", a.EndIndex, a.StartIndex)
		}
		if a.StartIndex < 0 {
			continue
		}
		for _, c := range a.RestCalls {
			if c.eventIndex < a.StartIndex {
				report(a, "rest call %s %s at index %d precedes action-start at index %d", c.Method, c.URL, c.eventIndex, a.StartIndex)
			} else if a.Origin != trace.OriginUser && a.EndIndex >= 0 && c.eventIndex > a.EndIndex {
				report(a, "rest call %s %s at index %d follows action-end at index %d", c.Method, c.URL, c.eventIndex, a.EndIndex)
			}
		}
		for _, op := range a.FtpOps {
			if op.eventIndex < a.StartIndex {
				report(a, "ftp op %s %s at index %d precedes action-start at index %d", op.Operation, op.Path, op.eventIndex, a.StartIndex)
			} else if a.Origin != trace.OriginUser && a.EndIndex >= 0 && op.eventIndex > a.EndIndex {
				report(a, "ftp op %s %s at index %d follows action-end at index %d", op.Operation, op.Path, op.eventIndex, a.EndIndex)
			}
		}
	}
	return violations
}
