package presence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
	"github.com/nerrad567/nebula-core/internal/infrastructure/mqtt"
)

// Subscriber is the part of the MQTT client the input bridge needs.
// *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Input feeds a Session from MQTT: detection frames as JSON on one topic,
// spoken notifications on another.
type Input struct {
	cfg     config.MQTTInputConfig
	qos     byte
	sub     Subscriber
	session *Session
	logger  Logger
}

// NewInput creates an MQTT input bridge for session.
func NewInput(cfg config.MQTTInputConfig, qos byte, sub Subscriber, session *Session) *Input {
	return &Input{cfg: cfg, qos: qos, sub: sub, session: session, logger: noopLogger{}}
}

// SetLogger sets the logger for the bridge.
func (in *Input) SetLogger(logger Logger) {
	in.logger = logger
}

// Start subscribes to the detection and spoken topics.
func (in *Input) Start() error {
	if err := in.sub.Subscribe(in.cfg.DetectionTopic, in.qos, in.handleDetection); err != nil {
		return fmt.Errorf("subscribing to %s: %w", in.cfg.DetectionTopic, err)
	}
	if err := in.sub.Subscribe(in.cfg.SpokenTopic, in.qos, in.handleSpoken); err != nil {
		in.sub.Unsubscribe(in.cfg.DetectionTopic) //nolint:errcheck // Rolling back a partial start
		return fmt.Errorf("subscribing to %s: %w", in.cfg.SpokenTopic, err)
	}

	in.logger.Info("presence input subscribed",
		"detection_topic", in.cfg.DetectionTopic,
		"spoken_topic", in.cfg.SpokenTopic,
	)
	return nil
}

// Stop unsubscribes from both topics.
func (in *Input) Stop() error {
	return errors.Join(
		in.sub.Unsubscribe(in.cfg.DetectionTopic),
		in.sub.Unsubscribe(in.cfg.SpokenTopic),
	)
}

func (in *Input) handleDetection(_ string, payload []byte) error {
	frame, err := DecodeFrame(payload)
	if err != nil {
		return err
	}
	in.session.Observe(frame)
	return nil
}

// handleSpoken marks the session spoken. An empty payload or any payload
// other than {"spoken": false} counts as a spoken notification.
func (in *Input) handleSpoken(_ string, payload []byte) error {
	if len(payload) > 0 {
		var msg struct {
			Spoken *bool `json:"spoken"`
		}
		if err := json.Unmarshal(payload, &msg); err == nil && msg.Spoken != nil && !*msg.Spoken {
			return nil
		}
	}
	in.session.MarkSpoken()
	return nil
}

// DecodeFrame parses a detection frame. person_found is required.
func DecodeFrame(payload []byte) (Frame, error) {
	var raw struct {
		PersonFound *bool   `json:"person_found"`
		Confidence  float64 `json:"confidence"`
		FrameID     int64   `json:"frame_id"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if raw.PersonFound == nil {
		return Frame{}, fmt.Errorf("%w: person_found is required", ErrInvalidFrame)
	}
	return Frame{PersonFound: *raw.PersonFound, Confidence: raw.Confidence, FrameID: raw.FrameID}, nil
}
