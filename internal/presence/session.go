package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/nebula-core/internal/dispatch"
	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
)

// defaultQueueSize is used when the configured queue size is not positive.
const defaultQueueSize = 64

// Frame is one detection result from the person detector. Confidence and
// FrameID are carried through to fleet signals; the tracker only looks at
// PersonFound.
type Frame struct {
	PersonFound bool    `json:"person_found"`
	Confidence  float64 `json:"confidence"`
	FrameID     int64   `json:"frame_id"`
}

// Event is a presence transition with the frame that caused it.
type Event struct {
	Type  EventType `json:"type"`
	Frame Frame     `json:"frame"`
	At    time.Time `json:"at"`
}

// Actuator sends a signal to the primary actuator.
// *actuator.Client satisfies it.
type Actuator interface {
	SendSignal(signalType string, data map[string]any) bool
}

// Dispatcher fans a signal out to the robot fleet.
// *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	SendSignal(ctx context.Context, sig dispatch.Signal, targetID string) (*dispatch.Report, error)
}

// Recorder receives every presence event, for telemetry.
type Recorder interface {
	RecordPresenceEvent(event string, confidence float64, frameID int64)
}

// Logger defines the logging interface used by the Session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// State is a snapshot of the session for reporting.
type State struct {
	Present   bool   `json:"present"`
	Spoken    bool   `json:"spoken"`
	Frames    uint64 `json:"frames"`
	Events    uint64 `json:"events"`
	Dropped   uint64 `json:"dropped"`
	LastFrame *Frame `json:"last_frame,omitempty"`
}

// Session owns the presence state for one detector feed.
//
// Thread Safety:
//   - Observe and MarkSpoken may be called from any goroutine; frames are
//     applied one at a time in call order.
//   - Events are routed by the single goroutine running Run, in the order
//     they fired.
type Session struct {
	tracker   *Tracker
	lastFrame *Frame
	mu        sync.Mutex

	queue chan Event

	signals    config.PresenceSignalsConfig
	actuator   Actuator
	dispatcher Dispatcher
	recorder   Recorder
	logger     Logger

	frames  atomic.Uint64
	events  atomic.Uint64
	dropped atomic.Uint64
}

// NewSession creates a session. actuator may be nil when no primary
// actuator is configured.
func NewSession(cfg config.PresenceConfig, actuator Actuator, dispatcher Dispatcher) *Session {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Session{
		tracker:    NewTracker(),
		queue:      make(chan Event, size),
		signals:    cfg.Signals,
		actuator:   actuator,
		dispatcher: dispatcher,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the session. Call before Run.
func (s *Session) SetLogger(logger Logger) {
	s.logger = logger
}

// SetRecorder sets the telemetry recorder. Call before Run.
func (s *Session) SetRecorder(recorder Recorder) {
	s.recorder = recorder
}

// Observe applies one frame. If it triggers an event the event is queued
// for routing and returned. A full queue drops the event with a warning.
func (s *Session) Observe(frame Frame) (Event, bool) {
	s.frames.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	f := frame
	s.lastFrame = &f

	typ, ok := s.tracker.Observe(frame.PersonFound)
	if !ok {
		return Event{}, false
	}

	ev := Event{Type: typ, Frame: frame, At: time.Now().UTC()}
	s.events.Add(1)
	s.logger.Info("presence event", "event", typ, "confidence", frame.Confidence, "frame_id", frame.FrameID)

	select {
	case s.queue <- ev:
	default:
		s.dropped.Add(1)
		s.logger.Warn("presence event queue full, dropping event", "event", typ, "queue_size", cap(s.queue))
	}
	return ev, true
}

// MarkSpoken records that the present person spoke. It returns false, and
// changes nothing, when nobody is present.
func (s *Session) MarkSpoken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracker.MarkSpoken() {
		s.logger.Debug("spoken notification ignored, nobody present")
		return false
	}
	s.logger.Debug("user spoke")
	return true
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Present: s.tracker.Present(),
		Spoken:  s.tracker.Spoken(),
		Frames:  s.frames.Load(),
		Events:  s.events.Load(),
		Dropped: s.dropped.Load(),
	}
	if s.lastFrame != nil {
		f := *s.lastFrame
		st.LastFrame = &f
	}
	return st
}

// Run routes queued events until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.queue:
			s.route(ctx, ev)
		}
	}
}

func (s *Session) route(ctx context.Context, ev Event) {
	if s.recorder != nil {
		s.recorder.RecordPresenceEvent(string(ev.Type), ev.Frame.Confidence, ev.Frame.FrameID)
	}

	switch ev.Type {
	case EventEntered:
		s.sendActuator(s.signals.Entered)

	case EventLeftAfterSpeech:
		s.sendActuator(s.signals.LeftAfterSpeech)
		s.sendFleet(ctx, s.signals.LeftAfterSpeechFleet, map[string]any{
			"confidence": ev.Frame.Confidence,
			"frame_id":   ev.Frame.FrameID,
		})
		s.sendActuator(s.signals.Left)

	case EventLeft:
		s.sendActuator(s.signals.Left)
	}
}

func (s *Session) sendActuator(signalType string) {
	if s.actuator == nil || signalType == "" {
		return
	}
	s.actuator.SendSignal(signalType, nil)
}

func (s *Session) sendFleet(ctx context.Context, signalType string, data map[string]any) {
	if s.dispatcher == nil || signalType == "" {
		return
	}
	report, err := s.dispatcher.SendSignal(ctx, dispatch.NewSignal(signalType, data), "")
	if err != nil {
		s.logger.Warn("fleet signal failed", "signal_type", signalType, "error", err)
		return
	}
	s.logger.Info("fleet signal sent", "signal_type", signalType, "succeeded", report.Succeeded, "total", report.Total)
}
