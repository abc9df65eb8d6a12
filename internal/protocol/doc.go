// Package protocol owns the wire contract shared by the backend session
// and the supervisor's liveness ping.
//
// Ownership boundary:
// - error taxonomy for transport, framing, and serialization failures
// - frame primitives (see frame)
// - request/result schemas (see session)
package protocol
