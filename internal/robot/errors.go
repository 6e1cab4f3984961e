package robot

import "errors"

// Domain errors for the robot package.
//
//	if errors.Is(err, robot.ErrRobotNotFound) {
//	    // handle not found case
//	}
var (
	// ErrRobotNotFound is returned when a robot ID does not exist.
	ErrRobotNotFound = errors.New("robot: not found")

	// ErrInvalidRobot is returned when a robot configuration fails validation.
	// Every validation error wraps it.
	ErrInvalidRobot = errors.New("robot: invalid configuration")

	// ErrInvalidProtocol is returned when a protocol value is not recognised.
	ErrInvalidProtocol = errors.New("robot: invalid protocol")

	// ErrMissingField is returned when a field required by the chosen protocol is empty.
	ErrMissingField = errors.New("robot: missing required field")

	// ErrInvalidURL is returned when a URL cannot be parsed or has the wrong scheme.
	ErrInvalidURL = errors.New("robot: invalid url")

	// ErrInvalidPort is returned when a port or baud rate is out of range.
	ErrInvalidPort = errors.New("robot: invalid port")

	// ErrInvalidTopic is returned when an MQTT topic contains wildcards.
	ErrInvalidTopic = errors.New("robot: invalid mqtt topic")
)
