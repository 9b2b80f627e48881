package window

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInsufficientData means the window has not accumulated the minimum
	// history yet; detectors must decline to fire instead of treating a
	// cold window as a spike.
	ErrInsufficientData = errors.New("insufficient window history")
)
