package stepper

import "errors"

// Sentinel errors. Configuration errors are unrecoverable (rebuild the
// motor); mode and speed errors leave the previous state in place.
var (
	ErrConfig          = errors.New("invalid motor configuration")
	ErrUnsupportedMode = errors.New("no phase table for step mode")
	ErrInvalidSpeed    = errors.New("invalid speed")
)
