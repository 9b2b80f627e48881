package calibration

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrRejected marks an invalid calibration set; the previous set stays active.
	ErrRejected = errors.New("calibration rejected")
)
