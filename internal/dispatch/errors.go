package dispatch

import "errors"

// Domain errors for the dispatch package.
var (
	// ErrTargetNotFound is returned when a named target robot is absent or disabled.
	ErrTargetNotFound = errors.New("dispatch: target robot not found")

	// ErrNoConnector is logged when no connector serves a robot's protocol.
	ErrNoConnector = errors.New("dispatch: no connector for protocol")
)
