// Package trace implements the action-tracing core: correlation-scoped
// action contexts, an append-only trace event log, and structured
// propagation of the active action across goroutine boundaries.
//
// DESIGN:
//
// Explicit context carriage:
// The "currently active action" rides on a context.Context value rather
// than a mutable global slot. Every operation that can record trace events
// takes a ctx; work spawned with Go(ctx, fn) inherits the action and is
// tracked so that an action only closes once its whole continuation graph
// has drained.
//
// Attribution invariant:
// Every recorded event carries a correlation id. Code running outside any
// action scope gets a synthesized system-origin action so the trace never
// contains unattributable events.
//
// Ordering:
// Events are appended in completion order. Exported traces are sorted by
// (relativeMs, parsed timestamp, insertion index); the three-level sort is
// stable and deterministic, which the comparison engine relies on.
package trace
