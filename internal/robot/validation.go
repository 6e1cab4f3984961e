package robot

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxIDLength   = 64
	maxNameLength = 100
	maxPort       = 65535
)

var validProtocols map[Protocol]struct{}

func init() {
	validProtocols = make(map[Protocol]struct{}, len(AllProtocols()))
	for _, p := range AllProtocols() {
		validProtocols[p] = struct{}{}
	}
}

// invalid wraps a specific validation error under ErrInvalidRobot.
func invalid(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidRobot, kind, fmt.Sprintf(format, args...))
}

// Validate checks a robot configuration for the fields its protocol needs.
// It returns the first problem found; every error wraps ErrInvalidRobot.
func Validate(c *Config) error {
	if c == nil {
		return ErrInvalidRobot
	}

	if strings.TrimSpace(c.ID) == "" {
		return invalid(ErrMissingField, "id is required")
	}
	if len(c.ID) > maxIDLength || strings.ContainsAny(c.ID, " \t\n/") {
		return invalid(ErrMissingField, "id %q must be at most %d characters without spaces or slashes", c.ID, maxIDLength)
	}

	if strings.TrimSpace(c.Name) == "" {
		return invalid(ErrMissingField, "name is required")
	}
	if utf8.RuneCountInString(c.Name) > maxNameLength {
		return invalid(ErrMissingField, "name must be at most %d characters", maxNameLength)
	}

	if err := ValidateProtocol(c.Protocol); err != nil {
		return err
	}

	switch c.Protocol {
	case ProtocolHTTP:
		if err := validateURL(c.URL, c.Protocol, "http", "https"); err != nil {
			return err
		}
	case ProtocolWebSocket:
		if err := validateURL(c.URL, c.Protocol, "ws", "wss"); err != nil {
			return err
		}
	case ProtocolMQTT:
		if err := validateMQTT(c); err != nil {
			return err
		}
	case ProtocolSerial:
		if strings.TrimSpace(c.SerialPort) == "" {
			return invalid(ErrMissingField, "serial_port is required for serial robots")
		}
		if c.SerialBaudRate <= 0 {
			return invalid(ErrInvalidPort, "serial_baudrate must be positive, got %d", c.SerialBaudRate)
		}
	}

	for signalType := range c.Commands {
		if signalType == "" {
			return invalid(ErrMissingField, "commands keys must be non-empty signal types")
		}
	}

	return nil
}

// ValidateProtocol reports whether p is a supported protocol.
func ValidateProtocol(p Protocol) error {
	if _, ok := validProtocols[p]; !ok {
		return invalid(ErrInvalidProtocol, "%q is not one of http, websocket, mqtt, serial", p)
	}
	return nil
}

func validateURL(raw string, p Protocol, schemes ...string) error {
	if strings.TrimSpace(raw) == "" {
		return invalid(ErrMissingField, "url is required for %s robots", p)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return invalid(ErrInvalidURL, "%v", err)
	}
	if u.Host == "" {
		return invalid(ErrInvalidURL, "%q has no host", raw)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return invalid(ErrInvalidURL, "%q must use scheme %s", raw, strings.Join(schemes, " or "))
}

func validateMQTT(c *Config) error {
	if strings.TrimSpace(c.MQTTBroker) == "" {
		return invalid(ErrMissingField, "mqtt_broker is required for mqtt robots")
	}
	if c.MQTTPort < 1 || c.MQTTPort > maxPort {
		return invalid(ErrInvalidPort, "mqtt_port must be between 1 and %d, got %d", maxPort, c.MQTTPort)
	}
	if strings.TrimSpace(c.MQTTTopic) == "" {
		return invalid(ErrMissingField, "mqtt_topic is required for mqtt robots")
	}
	if strings.ContainsAny(c.MQTTTopic, "+#") {
		return invalid(ErrInvalidTopic, "%q contains a wildcard", c.MQTTTopic)
	}
	return nil
}

// GenerateID returns a new random robot ID.
func GenerateID() string {
	return uuid.New().String()
}
