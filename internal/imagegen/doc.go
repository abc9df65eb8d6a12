// Package imagegen owns image generation sessions.
//
// Ownership boundary:
// - generation definitions and their wire mapping
// - progressive event stream (Sampling* then one Finished)
//
// A session opens one connection, writes one request, and closes the
// connection when the stream ends, errors, or is abandoned by its consumer.
// Payloads are opaque RGBA bytes; nothing here decodes pixels.
package imagegen
