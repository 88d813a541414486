package compare

import (
	"reflect"
	"strings"

	"github.com/roach88/c64u/internal/trace"
)

// matchActions pairs expected actions with actual actions via unordered
// bipartite matching: each expected action claims the first compatible
// unclaimed actual action. Returns the indices of unmatched expected
// (missing) and unmatched actual (unexpected) actions.
func matchActions(expected, actual []Action, noisy NoisePredicate) (missing, unexpected []int) {
	claimed := make([]bool, len(actual))
	for i, exp := range expected {
		found := -1
		for j, act := range actual {
			if claimed[j] {
				continue
			}
			if actionSatisfies(exp, act, noisy) {
				found = j
				break
			}
		}
		if found < 0 {
			missing = append(missing, i)
			continue
		}
		claimed[found] = true
	}
	for j := range actual {
		if !claimed[j] {
			unexpected = append(unexpected, j)
		}
	}
	return missing, unexpected
}

// actionSatisfies reports whether act can stand in for exp: compatible
// names, and every expected REST call and FTP op has a distinct compatible
// counterpart. The actual action may carry extra calls beyond the expected
// ones; those surface through the unmatched-action check, not here.
func actionSatisfies(exp, act Action, noisy NoisePredicate) bool {
	if !namesCompatible(exp, act) {
		return false
	}

	claimed := make([]bool, len(act.RestCalls))
	for _, want := range exp.RestCalls {
		found := false
		for j, got := range act.RestCalls {
			if claimed[j] || !callsCompatible(want, got, noisy) {
				continue
			}
			claimed[j] = true
			found = true
			break
		}
		if !found {
			return false
		}
	}

	opClaimed := make([]bool, len(act.FtpOps))
	for _, want := range exp.FtpOps {
		found := false
		for j, got := range act.FtpOps {
			if opClaimed[j] || !opsCompatible(want, got) {
				continue
			}
			opClaimed[j] = true
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

// namesCompatible allows names to drift where grouping makes them
// unstable: identical names always match, an action that never saw its
// start matches anything, two rest.* bookkeeping names match each other,
// and user-grouped actions match regardless of label because a gesture
// merges several sub-actions under one name.
func namesCompatible(exp, act Action) bool {
	switch {
	case exp.Name == act.Name:
		return true
	case exp.Name == actionNameUnknown || act.Name == actionNameUnknown:
		return true
	case strings.HasPrefix(exp.Name, "rest.") && strings.HasPrefix(act.Name, "rest."):
		return true
	case exp.Origin == trace.OriginUser || act.Origin == trace.OriginUser:
		return true
	}
	return false
}

// callsCompatible requires method and normalized URL to be equal. For a
// pair of noisy polls that is the whole contract; otherwise the expected
// body and status must structurally partial-match the actual ones.
func callsCompatible(exp, act RestCall, noisy NoisePredicate) bool {
	if !strings.EqualFold(exp.Method, act.Method) || exp.URL != act.URL {
		return false
	}
	if noisy != nil && noisy(exp) && noisy(act) {
		return true
	}
	return partialMatch(exp.Body, act.Body) && partialMatch(exp.Status, act.Status)
}

func opsCompatible(exp, act FtpOp) bool {
	if exp.Operation != act.Operation || exp.Path != act.Path {
		return false
	}
	if exp.Error != "" && exp.Error != act.Error {
		return false
	}
	return partialMatch(exp.Result, act.Result)
}

// partialMatch compares an expected value against an actual one with
// absent-matches-anything semantics: a nil expected value places no
// constraint, expected object keys must each partial-match but the actual
// object may carry extra keys, and arrays must agree element by element.
func partialMatch(expected, actual any) bool {
	if expected == nil {
		return true
	}
	switch want := expected.(type) {
	case map[string]any:
		got, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range want {
			if !partialMatch(v, got[k]) {
				return false
			}
		}
		return true
	case []any:
		got, ok := actual.([]any)
		if !ok || len(got) != len(want) {
			return false
		}
		for i := range want {
			if !partialMatch(want[i], got[i]) {
				return false
			}
		}
		return true
	default:
		return scalarEqual(expected, actual)
	}
}

// scalarEqual compares leaves with numeric coercion, since the same trace
// decodes to float64 via encoding/json but may be built with ints in
// tests.
func scalarEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
