package cobot

import "errors"

// Domain errors for the cobot package.
var (
	// ErrUnknownAction is returned when a signal maps to no gesture.
	ErrUnknownAction = errors.New("cobot: unknown action")

	// ErrStopped is returned when a gesture was stopped before its last pose.
	ErrStopped = errors.New("cobot: gesture stopped")

	// ErrStopTimeout is returned when a stopped gesture did not finish in time.
	ErrStopTimeout = errors.New("cobot: gesture did not stop in time")

	// ErrClosed is returned by a runner that has been closed.
	ErrClosed = errors.New("cobot: runner closed")
)
