package robot

import (
	"encoding/json"
	"maps"
)

// Default transport parameters applied when a record omits them.
const (
	DefaultMQTTPort       = 1883
	DefaultSerialBaudRate = 9600
)

// Protocol identifies the transport used to reach a robot.
type Protocol string

// Protocol constants.
const (
	ProtocolHTTP      Protocol = "http"
	ProtocolWebSocket Protocol = "websocket"
	ProtocolMQTT      Protocol = "mqtt"
	ProtocolSerial    Protocol = "serial"
)

// AllProtocols returns all valid protocol values.
func AllProtocols() []Protocol {
	return []Protocol{ProtocolHTTP, ProtocolWebSocket, ProtocolMQTT, ProtocolSerial}
}

// Command is an override payload fragment for one signal type. Its keys are
// merged over the top level of the serialised signal.
type Command map[string]any

// Config describes one signal target and how to reach it.
//
// A Config held by the Registry is never mutated in place: changes replace
// the whole value. Callers always receive copies.
type Config struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol"`
	Enabled  bool     `json:"enabled"`

	// HTTP and WebSocket
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`

	// MQTT
	MQTTBroker   string `json:"mqtt_broker"`
	MQTTPort     int    `json:"mqtt_port"`
	MQTTTopic    string `json:"mqtt_topic"`
	MQTTUsername string `json:"mqtt_username"`
	MQTTPassword string `json:"mqtt_password"`

	// Serial
	SerialPort     string `json:"serial_port"`
	SerialBaudRate int    `json:"serial_baudrate"`

	// Commands maps a signal type to the payload fragment that overrides it.
	Commands map[string]Command `json:"commands"`
}

// UnmarshalJSON decodes a persisted record, filling defaults for omitted
// enabled, mqtt_port and serial_baudrate fields.
func (c *Config) UnmarshalJSON(data []byte) error {
	type record Config
	r := record{
		Enabled:        true,
		MQTTPort:       DefaultMQTTPort,
		SerialBaudRate: DefaultSerialBaudRate,
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*c = Config(r)
	return nil
}

// ApplyDefaults fills zero-valued transport parameters with their defaults.
func (c *Config) ApplyDefaults() {
	if c.MQTTPort == 0 {
		c.MQTTPort = DefaultMQTTPort
	}
	if c.SerialBaudRate == 0 {
		c.SerialBaudRate = DefaultSerialBaudRate
	}
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	cpy := *c
	cpy.Headers = maps.Clone(c.Headers)
	if c.Commands != nil {
		cpy.Commands = make(map[string]Command, len(c.Commands))
		for signalType, cmd := range c.Commands {
			cpy.Commands[signalType] = Command(deepCopyMap(cmd))
		}
	}
	return &cpy
}

// CommandFor returns the override fragment for a signal type, if any.
func (c *Config) CommandFor(signalType string) (Command, bool) {
	cmd, ok := c.Commands[signalType]
	return cmd, ok
}

// Redacted returns a copy with the MQTT password masked, for API responses and logs.
func (c *Config) Redacted() *Config {
	cpy := c.Clone()
	if cpy.MQTTPassword != "" {
		cpy.MQTTPassword = "********"
	}
	return cpy
}

// deepCopyMap copies nested maps and slices produced by JSON decoding.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case Command:
		return Command(deepCopyMap(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
