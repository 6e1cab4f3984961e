package dispatch

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/nerrad567/nebula-core/internal/robot"
)

// TimestampFormat is the ISO-8601 layout used for signal timestamps on the wire.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Wire field names.
const (
	FieldSignalType = "signalType"
	FieldTimestamp  = "timestamp"
	FieldData       = "data"
)

// TestSignalType is sent by Dispatcher.Test.
const TestSignalType = "test"

// Signal is one command to deliver. It is not modified after creation.
type Signal struct {
	Type      string
	Timestamp time.Time
	Data      map[string]any
}

// NewSignal creates a signal stamped with the current time. data is copied;
// nil data becomes an empty object.
func NewSignal(signalType string, data map[string]any) Signal {
	copied := make(map[string]any, len(data))
	maps.Copy(copied, data)

	return Signal{
		Type:      signalType,
		Timestamp: time.Now().UTC(),
		Data:      copied,
	}
}

// Fields returns the signal's default wire fields as a fresh map.
func (s Signal) Fields() map[string]any {
	data := s.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		FieldSignalType: s.Type,
		FieldTimestamp:  s.Timestamp.UTC().Format(TimestampFormat),
		FieldData:       data,
	}
}

// MarshalJSON encodes the signal as {"signalType", "timestamp", "data"}.
func (s Signal) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Fields())
}

// Payload builds the payload for one robot: the signal's default fields
// with the robot's command override for this signal type merged over them.
// The merge is shallow; override keys replace top-level fields whole.
func Payload(s Signal, r *robot.Config) map[string]any {
	payload := s.Fields()
	if override, ok := r.CommandFor(s.Type); ok {
		maps.Copy(payload, override)
	}
	return payload
}
