package compare

import (
	"strings"

	"github.com/roach88/c64u/internal/canonical"
	"github.com/roach88/c64u/internal/trace"
)

// NoisePredicate decides whether a REST call is a known-noisy poll: a
// recurring, nondeterministic read the device makes on its own schedule.
// Noisy calls are tolerated structurally (method+url only) and repeating
// all-noisy actions collapse to one representative per signature.
type NoisePredicate func(RestCall) bool

// DefaultNoisePrefixes are the polling endpoints this device is known to
// hit repeatedly. The mechanism is the contract here; deployments tune the
// list through configuration.
var DefaultNoisePrefixes = []string{
	"/v1/info",
	"/v1/version",
	"/v1/drives",
	"/v1/configs",
	"/v1/machine:readmem",
}

// NoisyByPrefixes builds a predicate matching GET calls whose normalized
// URL starts with any of the given path prefixes.
func NoisyByPrefixes(prefixes []string) NoisePredicate {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return func(c RestCall) bool {
		if !strings.EqualFold(c.Method, "GET") {
			return false
		}
		for _, p := range cleaned {
			if strings.HasPrefix(c.URL, p) {
				return true
			}
		}
		return false
	}
}

// allNoisy reports whether the action consists entirely of noisy polling
// calls: at least one REST call, every one noisy, and no FTP operations.
func allNoisy(a Action, noisy NoisePredicate) bool {
	if len(a.RestCalls) == 0 || len(a.FtpOps) > 0 {
		return false
	}
	for _, c := range a.RestCalls {
		if !noisy(c) {
			return false
		}
	}
	return true
}

// filterNoise collapses all-noisy polling actions to one representative
// per distinct signature (action name plus method+url of each call,
// ignoring backend target and response data). Polling repeats
// nondeterministically across runs, so duplicates would only produce
// spurious diffs, but one representative of each signature must survive
// so a poll that stopped happening is still caught.
func filterNoise(actions []Action, noisy NoisePredicate) []Action {
	seen := make(map[string]bool)
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if !allNoisy(a, noisy) {
			out = append(out, a)
			continue
		}
		sig := noisySignature(a)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, a)
	}
	return out
}

func noisySignature(a Action) string {
	calls := make([]map[string]any, 0, len(a.RestCalls))
	for _, c := range a.RestCalls {
		calls = append(calls, map[string]any{"method": c.Method, "url": c.URL})
	}
	sig, err := canonical.Marshal(map[string]any{"name": a.Name, "calls": calls})
	if err != nil {
		return a.Name
	}
	return string(sig)
}

// dedupeSystemCovered drops system-origin actions whose exact request
// signature a user-origin action already covers. User-span grouping merges
// caused system calls into the gesture; without this step the same
// underlying call would be counted once per grouping strategy.
func dedupeSystemCovered(actions []Action) []Action {
	userSigs := make(map[string]int)
	for _, a := range actions {
		if a.Origin != trace.OriginUser {
			continue
		}
		for _, sig := range requestSignatures(a) {
			userSigs[sig]++
		}
	}
	if len(userSigs) == 0 {
		return actions
	}

	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if a.Origin == trace.OriginUser || !coveredBy(a, userSigs) {
			out = append(out, a)
			continue
		}
		for _, sig := range requestSignatures(a) {
			userSigs[sig]--
		}
	}
	return out
}

// coveredBy reports whether every request the action made is still
// available in the user-action signature multiset.
func coveredBy(a Action, sigs map[string]int) bool {
	want := requestSignatures(a)
	if len(want) == 0 {
		return false
	}
	need := make(map[string]int)
	for _, sig := range want {
		need[sig]++
	}
	for sig, n := range need {
		if sigs[sig] < n {
			return false
		}
	}
	return true
}

// requestSignatures serializes each call and op by its request side only:
// responses may legitimately differ between the merged and standalone
// recordings of the same call.
func requestSignatures(a Action) []string {
	sigs := make([]string, 0, len(a.RestCalls)+len(a.FtpOps))
	for _, c := range a.RestCalls {
		sig, err := canonical.Marshal(map[string]any{"method": c.Method, "url": c.URL, "body": c.Body})
		if err != nil {
			continue
		}
		sigs = append(sigs, "rest:"+string(sig))
	}
	for _, op := range a.FtpOps {
		sigs = append(sigs, "ftp:"+op.Operation+":"+op.Path)
	}
	return sigs
}
