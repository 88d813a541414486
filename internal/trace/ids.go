package trace

import (
	"fmt"
	"regexp"
	"sync"
)

// ID prefixes for the two independent counters.
const (
	EventIDPrefix       = "EVT-"
	CorrelationIDPrefix = "COR-"
)

// Well-formed id patterns, shared with the comparison engine's validator.
var (
	EventIDPattern       = regexp.MustCompile(`^EVT-\d{4,}$`)
	CorrelationIDPattern = regexp.MustCompile(`^COR-\d{4,}$`)
)

// Allocator issues monotonically increasing, formatted trace identifiers.
//
// Two independent counters back event ids and correlation ids. Both start
// so that the first issued id is exactly 0. Counters never wrap (process
// lifetime) and can be reset to a chosen base for deterministic test runs.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex, matching the resettable-clock discipline used elsewhere.
type Allocator struct {
	mu          sync.Mutex
	event       int64
	correlation int64
}

// NewAllocator creates an allocator whose first event id is "EVT-0000" and
// first correlation id is "COR-0000".
func NewAllocator() *Allocator {
	return &Allocator{event: -1, correlation: -1}
}

// NextEventID increments the event counter and returns the formatted id.
func (a *Allocator) NextEventID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.event++
	return formatID(EventIDPrefix, a.event)
}

// NextCorrelationID increments the correlation counter and returns the
// formatted id.
func (a *Allocator) NextCorrelationID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.correlation++
	return formatID(CorrelationIDPrefix, a.correlation)
}

// Reset rebases both counters so the next issued ids are exactly
// eventStart and correlationStart. Negative inputs clamp to 0; a reset can
// therefore never produce a negative or malformed id.
func (a *Allocator) Reset(eventStart, correlationStart int64) {
	if eventStart < 0 {
		eventStart = 0
	}
	if correlationStart < 0 {
		correlationStart = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.event = eventStart - 1
	a.correlation = correlationStart - 1
}

// formatID renders PREFIX + zero-padded decimal, at least 4 digits.
// Counters beyond 9999 simply widen; ids stay lexically unambiguous.
func formatID(prefix string, n int64) string {
	return fmt.Sprintf("%s%04d", prefix, n)
}
