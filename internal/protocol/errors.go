package protocol

import "errors"

// Callers match these with errors.Is; producers wrap them with context.
var (
	ErrConnectionFailed    = errors.New("protocol: connection failed")
	ErrFrameIOFailed       = errors.New("protocol: frame io failed")
	ErrSerializationFailed = errors.New("protocol: serialization failed")
)
