package backend

import "errors"

var (
	ErrBackendUnavailable   = errors.New("backend: unavailable")
	ErrBackendProcessFailed = errors.New("backend: lifecycle command failed")
	ErrAlreadyStarted       = errors.New("backend: supervisor already started")
)
