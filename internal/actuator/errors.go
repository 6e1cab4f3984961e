package actuator

import "errors"

// Domain errors for the actuator package.
var (
	// ErrNotConnected is returned when sending while the actuator is not connected.
	ErrNotConnected = errors.New("actuator: not connected")

	// ErrClosed is returned after Disconnect.
	ErrClosed = errors.New("actuator: client closed")

	// ErrUnknownGesture is returned for a gesture outside the catalogue.
	ErrUnknownGesture = errors.New("actuator: unknown gesture")
)
