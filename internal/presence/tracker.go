package presence

// EventType is an edge-triggered presence transition.
type EventType string

// Presence events.
const (
	EventEntered         EventType = "ENTERED"
	EventLeftAfterSpeech EventType = "LEFT_AFTER_SPEECH"
	EventLeft            EventType = "LEFT"
)

// Tracker decides when presence events fire. It is not safe for concurrent
// use; Session serialises access.
type Tracker struct {
	present bool
	spoken  bool
}

// NewTracker creates a tracker with nobody present.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe applies one detection result and returns the event it triggers,
// if any. Only a change in presence fires: repeating the same value never
// emits. At most one event is returned per call.
func (t *Tracker) Observe(detected bool) (EventType, bool) {
	was := t.present
	t.present = detected

	switch {
	case !was && detected:
		return EventEntered, true
	case was && !detected && t.spoken:
		t.spoken = false
		return EventLeftAfterSpeech, true
	case was && !detected:
		return EventLeft, true
	default:
		return "", false
	}
}

// MarkSpoken records that the present person spoke. It is ignored, and
// returns false, when nobody is present.
func (t *Tracker) MarkSpoken() bool {
	if !t.present {
		return false
	}
	t.spoken = true
	return true
}

// Present reports whether a person is currently present.
func (t *Tracker) Present() bool {
	return t.present
}

// Spoken reports whether the present person has spoken.
func (t *Tracker) Spoken() bool {
	return t.spoken
}
