package actuator

import (
	"encoding/json"
	"fmt"
)

// Inbound message types sent by the actuator.
const (
	MessageConnected = "connected"
	MessageResponse  = "response"
	MessageError     = "error"
)

// Message is a tagged message received from the actuator.
type Message struct {
	Type       string          `json:"type"`
	Message    string          `json:"message,omitempty"`
	SignalType string          `json:"signalType,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Timestamp  any             `json:"timestamp,omitempty"`
}

// decodeMessage parses one inbound frame. Untagged frames are rejected.
func decodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decoding actuator message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("decoding actuator message: missing type")
	}
	return msg, nil
}
