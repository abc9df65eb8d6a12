// Package backend supervises the image-generation backend container.
//
// Ownership boundary:
// - container create/start/logs/stop through an injectable Runtime
// - readiness polling over the session ping task
// - shared Handle ownership with stop-exactly-once teardown
//
// Lifecycle order:
// - not_started -> launching -> starting -> polling_ready -> running -> stopped
//
// - stopped is reached when the last Handle is released, or when start fails
//   after a container was created.
package backend
