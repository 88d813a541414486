package trace

import "time"

// Origin classifies who caused an action: a user gesture or the system
// itself (pollers, recovery, synthesized attribution).
type Origin string

const (
	OriginUser   Origin = "user"
	OriginSystem Origin = "system"
)

// Event types recorded by the core.
const (
	EventActionStart = "action-start"
	EventActionEnd   = "action-end"
	EventRestCall    = "rest-call"
	EventFtpOp       = "ftp-op"
	EventLiveness    = "liveness-check"
	EventError       = "error"
)

// ActionContext identifies one logical, causally-related unit of work.
// Immutable after creation; its lifetime is managed by the scope that
// opened it (see Recorder.Run).
type ActionContext struct {
	CorrelationID string    `json:"correlationId"`
	Name          string    `json:"name"`
	Origin        Origin    `json:"origin"`
	Component     string    `json:"component,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
}

// TraceEvent is one entry in the append-only session trace.
//
// RelativeMs is wall-clock-relative to the first event of the session and
// is the primary sort key; Timestamp (parsed) is the secondary key, and
// insertion order is the final tie-break.
type TraceEvent struct {
	ID            string         `json:"id"`
	Timestamp     string         `json:"timestamp"`
	RelativeMs    int64          `json:"relativeMs"`
	Type          string         `json:"type"`
	Origin        Origin         `json:"origin"`
	CorrelationID string         `json:"correlationId"`
	Data          map[string]any `json:"data"`
}

// timestampLayout is ISO-8601 with millisecond precision, always UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// parseTimestamp parses an event timestamp for sorting. Unparseable
// timestamps sort as the zero time so the insertion-index tie-break
// decides.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
