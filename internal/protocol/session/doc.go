// Package session owns the client<->backend wire contract.
//
// Ownership boundary:
// - task request envelopes (ping, generate_image)
// - result metadata + payload pairing
// - transport timeouts and readiness poll cadence
//
// One connection carries exactly one session. The client writes a single
// JSON request frame and reads (metadata, payload) frame pairs until a
// result with is_final arrives.
package session
