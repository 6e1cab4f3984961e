package presence

import (
	"errors"
	"testing"

	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
	"github.com/nerrad567/nebula-core/internal/infrastructure/mqtt"
)

// fakeSubscriber records subscriptions and lets tests inject messages.
type fakeSubscriber struct {
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	failTopic    string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if topic == f.failTopic {
		return mqtt.ErrSubscribeFailed
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topic string) error {
	delete(f.handlers, topic)
	f.unsubscribed = append(f.unsubscribed, topic)
	return nil
}

func (f *fakeSubscriber) deliver(t *testing.T, topic, payload string) error {
	t.Helper()
	h, ok := f.handlers[topic]
	if !ok {
		t.Fatalf("no handler for %s", topic)
	}
	return h(topic, []byte(payload))
}

func inputConfig() config.MQTTInputConfig {
	return config.MQTTInputConfig{
		Enabled:        true,
		DetectionTopic: "nebula/presence/detection",
		SpokenTopic:    "nebula/presence/spoken",
	}
}

func TestInput_FeedsSession(t *testing.T) {
	sub := newFakeSubscriber()
	s := NewSession(testPresenceConfig(8), nil, nil)
	in := NewInput(inputConfig(), 0, sub, s)

	if err := in.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := sub.deliver(t, "nebula/presence/detection", `{"person_found":true,"confidence":0.7,"frame_id":12}`); err != nil {
		t.Fatalf("detection handler error = %v", err)
	}
	if err := sub.deliver(t, "nebula/presence/spoken", ``); err != nil {
		t.Fatalf("spoken handler error = %v", err)
	}

	st := s.State()
	if !st.Present || !st.Spoken {
		t.Errorf("state = %+v, want present and spoken", st)
	}
	if st.LastFrame.FrameID != 12 {
		t.Errorf("FrameID = %d, want 12", st.LastFrame.FrameID)
	}

	if err := in.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(sub.unsubscribed) != 2 {
		t.Errorf("unsubscribed = %v, want both topics", sub.unsubscribed)
	}
}

func TestInput_SpokenFalseIgnored(t *testing.T) {
	sub := newFakeSubscriber()
	s := NewSession(testPresenceConfig(8), nil, nil)
	in := NewInput(inputConfig(), 0, sub, s)
	if err := in.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sub.deliver(t, "nebula/presence/detection", `{"person_found":true}`) //nolint:errcheck // Asserted via state
	sub.deliver(t, "nebula/presence/spoken", `{"spoken":false}`)         //nolint:errcheck // Asserted via state
	if s.State().Spoken {
		t.Error(`{"spoken":false} marked the session spoken`)
	}

	sub.deliver(t, "nebula/presence/spoken", `{"spoken":true}`) //nolint:errcheck // Asserted via state
	if !s.State().Spoken {
		t.Error(`{"spoken":true} did not mark the session spoken`)
	}
}

func TestInput_BadFrame(t *testing.T) {
	sub := newFakeSubscriber()
	s := NewSession(testPresenceConfig(8), nil, nil)
	in := NewInput(inputConfig(), 0, sub, s)
	if err := in.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	err := sub.deliver(t, "nebula/presence/detection", `not json`)
	if !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("handler error = %v, want ErrInvalidFrame", err)
	}
	if s.State().Frames != 0 {
		t.Error("bad frame reached the session")
	}
}

func TestInput_StartRollsBack(t *testing.T) {
	sub := newFakeSubscriber()
	sub.failTopic = "nebula/presence/spoken"
	in := NewInput(inputConfig(), 0, sub, NewSession(testPresenceConfig(8), nil, nil))

	if err := in.Start(); !errors.Is(err, mqtt.ErrSubscribeFailed) {
		t.Fatalf("Start() error = %v, want ErrSubscribeFailed", err)
	}
	if len(sub.handlers) != 0 {
		t.Errorf("handlers left after failed Start: %d", len(sub.handlers))
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Frame
		wantErr bool
	}{
		{name: "full frame", input: `{"person_found":true,"confidence":0.93,"frame_id":7}`, want: Frame{PersonFound: true, Confidence: 0.93, FrameID: 7}},
		{name: "absent", input: `{"person_found":false}`, want: Frame{}},
		{name: "missing person_found", input: `{"confidence":0.5}`, wantErr: true},
		{name: "wrong type", input: `{"person_found":"yes"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFrame([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("DecodeFrame() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
