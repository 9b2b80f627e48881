package repository

import "errors"

// Sentinel kinds for signal log errors.
var (
	ErrNotFound      = errors.New("signal not found")
	ErrInvalidSignal = errors.New("invalid signal")
)
