// Package tools provides host command execution shared by runtime adapters.
//
// Ownership boundary:
// - awaited command execution with captured output
// - first-line capture from a command's stdout
// - detached, fire-and-forget spawning
package tools
