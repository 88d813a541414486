package compare

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/c64u/internal/trace"
)

// redacted replaces volatile values. The placeholder must not itself match
// any redaction pattern, so normalization is a projection: applying it
// twice equals applying it once.
const redacted = "<redacted>"

var (
	// Payload keys that carry wall-clock material. Matched case-insensitively
	// against the full key.
	timingKeyPattern = regexp.MustCompile(`(?i)^(.*(timestamp|duration|elapsed)(ms|millis)?|time|startedat|endedat|uptime(ms|millis)?)$`)

	// Payload keys whose value is a per-run identifier.
	volatileIDPattern = regexp.MustCompile(`(?i)^((trace|session|correlation|request).*id|port|volume)$`)

	// Host/IP material embedded in strings, with an optional port.
	hostPattern = regexp.MustCompile(`(?i)\b(localhost|\d{1,3}(?:\.\d{1,3}){3})(:\d{1,5})?\b`)

	// Filesystem paths rooted in a user home or temp directory.
	pathPattern = regexp.MustCompile(`(?:/(?:Users|home)/[^\s"',]+|/(?:tmp|var/folders)/[^\s"',]+|[A-Za-z]:\\Users\\[^\s"',]+)`)

	urlOriginPattern = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://[^/]*`)
)

// NormalizeEvents returns a copy of events sorted into canonical order with
// every payload normalized. Inputs are not modified.
func NormalizeEvents(events []trace.TraceEvent) []trace.TraceEvent {
	out := make([]trace.TraceEvent, len(events))
	copy(out, events)
	trace.SortEvents(out)
	for i := range out {
		if v, ok := NormalizePayload(out[i].Data).(map[string]any); ok {
			out[i].Data = v
		} else {
			out[i].Data = nil
		}
	}
	return out
}

// NormalizePayload projects a decoded JSON payload onto its stable parts:
// timing keys are dropped, volatile-identifier keys are redacted, embedded
// hosts and user paths are replaced with placeholders, and URL-shaped
// strings lose their origin and gain sorted query parameters.
func NormalizePayload(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if timingKeyPattern.MatchString(k) {
				continue
			}
			if volatileIDPattern.MatchString(k) {
				out[k] = redacted
				continue
			}
			out[k] = NormalizePayload(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = NormalizePayload(inner)
		}
		return out
	case string:
		return normalizeString(val)
	default:
		return v
	}
}

func normalizeString(s string) string {
	s = pathPattern.ReplaceAllString(s, redacted)
	if looksLikeURL(s) {
		return NormalizeURL(s)
	}
	return hostPattern.ReplaceAllString(s, redacted)
}

func looksLikeURL(s string) bool {
	if urlOriginPattern.MatchString(s) {
		return true
	}
	return strings.HasPrefix(s, "/") && !strings.ContainsAny(s, " \n")
}

// NormalizeURL strips the scheme://host:port origin and rewrites the query
// string with its parameters in lexicographic order. Already-normalized
// URLs pass through unchanged.
func NormalizeURL(raw string) string {
	s := urlOriginPattern.ReplaceAllString(raw, "")
	if s == "" {
		s = "/"
	}
	path, query, ok := strings.Cut(s, "?")
	if !ok || query == "" {
		return path
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return s
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			b.WriteString(sep)
			sep = "&"
			b.WriteString(url.QueryEscape(k))
			b.WriteString("=")
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
