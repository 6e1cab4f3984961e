package presence

import "errors"

// Domain errors for the presence package.
var (
	// ErrInvalidFrame is returned when a detection frame cannot be decoded.
	ErrInvalidFrame = errors.New("presence: invalid detection frame")
)
