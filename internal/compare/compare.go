package compare

import "github.com/roach88/c64u/internal/trace"

// Diff is the structural comparison outcome, kept alongside the flat
// error list so tooling can render its own report.
type Diff struct {
	MissingActions     []Action `json:"missingActions"`
	UnexpectedActions  []Action `json:"unexpectedActions"`
	OrderingViolations []string `json:"orderingViolations"`
	ExpectedActions    []Action `json:"expectedActions"`
	ActualActions      []Action `json:"actualActions"`
}

// Result is the full outcome of a trace comparison. Errors is the union
// of id-validation errors, missing/unexpected actions and ordering
// violations; an empty slice means the traces match.
type Result struct {
	Errors []string `json:"errors"`
	Diff   Diff     `json:"diff"`
}

// Ok reports whether the comparison found no discrepancies.
func (r Result) Ok() bool {
	return len(r.Errors) == 0
}

// Options tunes a comparison. The zero value uses the default noise
// endpoint list.
type Options struct {
	// Noise classifies known-noisy polling calls. Nil means
	// NoisyByPrefixes(DefaultNoisePrefixes).
	Noise NoisePredicate
}

// CompareTraces compares an actual trace against an expected golden trace
// with default options.
func CompareTraces(expected, actual []trace.TraceEvent) Result {
	return CompareTracesWith(expected, actual, Options{})
}

// CompareTracesWith runs the full comparison pipeline: validate, sort and
// normalize, group into actions, collapse noise, cross-deduplicate, match
// and check ordering. It never panics on malformed input and never stops
// at the first problem.
func CompareTracesWith(expected, actual []trace.TraceEvent, opts Options) Result {
	noisy := opts.Noise
	if noisy == nil {
		noisy = NoisyByPrefixes(DefaultNoisePrefixes)
	}

	errs := validateIDs(actual)

	expEvents := NormalizeEvents(expected)
	actEvents := NormalizeEvents(actual)

	expActions, actActions := GroupActions(expEvents, actEvents)

	expActions = filterNoise(expActions, noisy)
	actActions = filterNoise(actActions, noisy)

	expActions = dedupeSystemCovered(expActions)
	actActions = dedupeSystemCovered(actActions)

	missingIdx, unexpectedIdx := matchActions(expActions, actActions, noisy)

	diff := Diff{
		OrderingViolations: checkOrdering(actActions),
		ExpectedActions:    expActions,
		ActualActions:      actActions,
	}
	for _, i := range missingIdx {
		diff.MissingActions = append(diff.MissingActions, expActions[i])
		errs = append(errs, describeUnmatched("missing expected", expActions, i, actActions))
	}
	for _, j := range unexpectedIdx {
		diff.UnexpectedActions = append(diff.UnexpectedActions, actActions[j])
		errs = append(errs, describeUnmatched("unexpected actual", actActions, j, expActions))
	}
	errs = append(errs, diff.OrderingViolations...)

	return Result{Errors: errs, Diff: diff}
}
