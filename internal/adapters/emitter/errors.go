package emitter

import "errors"

// Sentinel kinds for emitter errors.
var (
	ErrInvalidSignal = errors.New("invalid signal")
	ErrPublishFailed = errors.New("signal publish failed")
)
