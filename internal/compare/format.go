package compare

import (
	"fmt"
	"strings"
)

// contextRadius is how many neighboring actions are shown around an
// unmatched one.
const contextRadius = 2

// describeUnmatched renders one unmatched action with a small context
// window from its own sequence and from the other side, so a failure
// message alone is usually enough to see what drifted.
func describeUnmatched(kind string, own []Action, idx int, other []Action) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s action: %s", kind, own[idx].Label())
	b.WriteString("\n  context (own sequence):")
	writeWindow(&b, own, idx)
	b.WriteString("\n  context (other sequence):")
	writeWindow(&b, other, nearestIndex(other, idx))
	return b.String()
}

func writeWindow(b *strings.Builder, actions []Action, center int) {
	if len(actions) == 0 {
		b.WriteString("\n    (empty)")
		return
	}
	lo := center - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := center + contextRadius
	if hi > len(actions)-1 {
		hi = len(actions) - 1
	}
	for i := lo; i <= hi; i++ {
		marker := "  "
		if i == center {
			marker = "> "
		}
		fmt.Fprintf(b, "\n    %s[%d] %s", marker, i, actions[i].Label())
	}
}

// nearestIndex clamps an index from one sequence into the bounds of the
// other, which is where the counterpart would have been.
func nearestIndex(actions []Action, idx int) int {
	if idx >= len(actions) {
		return len(actions) - 1
	}
	return idx
}

// FormatTraceErrors renders a comparison outcome as a multi-line failure
// summary with per-category counts, suitable for a test assertion message.
// context names the scenario being compared.
func FormatTraceErrors(errors []string, context string, diff Diff) string {
	if len(errors) == 0 {
		return fmt.Sprintf("%s: traces match (%d expected, %d actual actions)", context, len(diff.ExpectedActions), len(diff.ActualActions))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: trace comparison failed with %d error(s)\n", context, len(errors))
	fmt.Fprintf(&b, "  missing actions:     %d\n", len(diff.MissingActions))
	fmt.Fprintf(&b, "  unexpected actions:  %d\n", len(diff.UnexpectedActions))
	fmt.Fprintf(&b, "  ordering violations: %d\n", len(diff.OrderingViolations))
	fmt.Fprintf(&b, "  compared:            %d expected vs %d actual action(s)\n", len(diff.ExpectedActions), len(diff.ActualActions))
	for _, e := range errors {
		b.WriteString("\n- ")
		b.WriteString(e)
	}
	return b.String()
}
