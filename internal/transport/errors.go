package transport

import "errors"

// Domain errors for the transport package.
var (
	// ErrUnsupported is returned when no connector handles a robot's protocol.
	ErrUnsupported = errors.New("transport: unsupported protocol")

	// ErrStatus is logged when an HTTP robot answers with a non-2xx status.
	ErrStatus = errors.New("transport: unexpected status")

	// ErrClosed is logged when a delivery races a connector shutdown or an
	// invalidated handle.
	ErrClosed = errors.New("transport: connection closed")
)
