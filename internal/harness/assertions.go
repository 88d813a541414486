package harness

import (
	"github.com/roach88/c64u/internal/compare"
	"github.com/roach88/c64u/internal/trace"
)

// TestingT is the subset of *testing.T the assertions need, so failure
// reporting can be verified in tests.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

// AssertTracesMatch compares actual against expected with the full
// comparison pipeline and reports the formatted diff on mismatch.
// Returns true when the traces match.
func AssertTracesMatch(t TestingT, context string, expected, actual []trace.TraceEvent, opts compare.Options) bool {
	t.Helper()

	res := compare.CompareTracesWith(expected, actual, opts)
	if res.Ok() {
		return true
	}
	t.Errorf("%s", compare.FormatTraceErrors(res.Errors, context, res.Diff))
	return false
}

// RequireTracesMatch is AssertTracesMatch that stops the test on
// mismatch.
func RequireTracesMatch(t TestingT, context string, expected, actual []trace.TraceEvent, opts compare.Options) {
	t.Helper()

	if !AssertTracesMatch(t, context, expected, actual, opts) {
		t.FailNow()
	}
}
