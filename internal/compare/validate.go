package compare

import (
	"fmt"

	"github.com/roach88/c64u/internal/trace"
)

// validateIDs checks id formats and event-id uniqueness of the actual
// trace. Violations become hard errors but never abort the comparison:
// the rest of the pipeline still runs so the caller sees every problem in
// one pass.
func validateIDs(events []trace.TraceEvent) []string {
	var errs []string
	seen := make(map[string]int)
	for i, ev := range events {
		if !trace.EventIDPattern.MatchString(ev.ID) {
			errs = append(errs, fmt.Sprintf("event %d: malformed event id %q", i, ev.ID))
		}
		if !trace.CorrelationIDPattern.MatchString(ev.CorrelationID) {
			errs = append(errs, fmt.Sprintf("event %d (%s): malformed correlation id %q", i, ev.ID, ev.CorrelationID))
		}
		if prev, dup := seen[ev.ID]; dup {
			errs = append(errs, fmt.Sprintf("event %d: duplicate event id %q (first used by event %d)", i, ev.ID, prev))
			continue
		}
		seen[ev.ID] = i
	}
	return errs
}
