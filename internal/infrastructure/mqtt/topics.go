package mqtt

import "fmt"

// Topic prefixes used by Nebula itself. Robot topics are configured per robot
// and are not constrained to this hierarchy.
const (
	// TopicPrefix is the base for all Nebula topics.
	TopicPrefix = "nebula"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "nebula/system"

	// TopicPrefixPresence is the base for presence input topics.
	TopicPrefixPresence = "nebula/presence"
)

// Topics provides builders for Nebula MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.SystemStatus()      // "nebula/system/status"
//	topics.PresenceDetection() // "nebula/presence/detection"
type Topics struct{}

// SystemStatus returns the topic carrying online/offline status and the LWT.
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// PresenceDetection returns the default topic for detector frames.
func (Topics) PresenceDetection() string {
	return fmt.Sprintf("%s/detection", TopicPrefixPresence)
}

// PresenceSpoken returns the default topic for speech-relay notifications.
func (Topics) PresenceSpoken() string {
	return fmt.Sprintf("%s/spoken", TopicPrefixPresence)
}

// RobotSignal returns a conventional topic for a robot's signals, used when
// tooling needs a default for a newly configured MQTT robot.
//
// Example: nebula/robot/arm-1/signal
func (Topics) RobotSignal(robotID string) string {
	return fmt.Sprintf("%s/robot/%s/signal", TopicPrefix, robotID)
}

// AllPresence returns a wildcard matching every presence input topic.
func (Topics) AllPresence() string {
	return fmt.Sprintf("%s/+", TopicPrefixPresence)
}
