// Package history persists finished generation sessions in sqlite.
package history
