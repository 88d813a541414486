// Package device talks to the C64 Ultimate REST API and implements the
// guarded bulk-memory operations built on top of it.
//
// Layers, bottom up:
//
//   - Client: thin HTTP client for /v1/machine:* and /v1/configs. Every
//     call records a rest-call trace event under the active action.
//   - Liveness: single-pass health heuristic from two reads of the jiffy
//     clock and the raster register.
//   - Guard: pause/transfer/resume bracketing for full-RAM operations,
//     with bounded retries and a reset-then-reboot recovery escalation.
//
// The device is the shared resource; "paused" is the critical section.
// Resume is attempted on every exit path, mirroring scoped acquisition
// with guaranteed release.
package device
