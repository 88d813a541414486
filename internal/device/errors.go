package device

import "fmt"

// ProtocolError marks a protocol or invariant violation: a short memory
// read, a malformed RAM image, a response the firmware should never
// produce. These indicate a logic or firmware bug, not a transient
// condition, so they are never retried.
type ProtocolError struct {
	Op      string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func protocolErrorf(op, format string, args ...any) *ProtocolError {
	return &ProtocolError{Op: op, Message: fmt.Sprintf(format, args...)}
}
