// Package compare is the offline trace comparison engine used for
// regression testing against golden traces.
//
// PIPELINE:
//
//  1. Validate id formats and event-id uniqueness of the actual trace.
//  2. Normalize volatile payload fields (timing keys, hosts/ports, user
//     paths, volatile identifiers, URL origins and query ordering).
//  3. Group events into actions: per-correlation system actions, or
//     user-gesture spans when both traces contain user-origin actions.
//  4. Collapse nondeterministically repeating polling actions to one
//     representative per distinct signature.
//  5. Drop system actions whose request signature a user action already
//     covers, so the same call is not counted once per grouping strategy.
//  6. Unordered bipartite matching of expected against actual actions,
//     with partial structural body matching and noisy-call tolerance.
//  7. Independent causal-ordering check over the actual actions.
//
// Discrepancies are collected into a structured Result, never thrown: the
// caller is a test runner that wants every problem at once.
package compare
