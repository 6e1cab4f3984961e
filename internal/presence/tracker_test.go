package presence

import (
	"math/rand"
	"slices"
	"testing"
)

func TestTracker_Sequences(t *testing.T) {
	tests := []struct {
		name       string
		frames     []bool
		speakAfter int // index after which MarkSpoken is called; -1 for never
		want       []EventType
	}{
		{
			name:       "enter then leave after speaking",
			frames:     []bool{false, true, true, false},
			speakAfter: 2,
			want:       []EventType{EventEntered, EventLeftAfterSpeech},
		},
		{
			name:       "enter then leave without speaking",
			frames:     []bool{false, true, false},
			speakAfter: -1,
			want:       []EventType{EventEntered, EventLeft},
		},
		{
			name:       "nobody ever arrives",
			frames:     []bool{false, false, false},
			speakAfter: -1,
			want:       nil,
		},
		{
			name:       "spoken while absent is ignored",
			frames:     []bool{false, true, false},
			speakAfter: 0,
			want:       []EventType{EventEntered, EventLeft},
		},
		{
			name:       "two visits, speech only in the first",
			frames:     []bool{true, false, true, false},
			speakAfter: 0,
			want:       []EventType{EventEntered, EventLeftAfterSpeech, EventEntered, EventLeft},
		},
		{
			name:       "stays present",
			frames:     []bool{true, true, true},
			speakAfter: 1,
			want:       []EventType{EventEntered},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			var got []EventType
			for i, detected := range tt.frames {
				if ev, ok := tr.Observe(detected); ok {
					got = append(got, ev)
				}
				if i == tt.speakAfter {
					tr.MarkSpoken()
				}
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("events = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker_SpokenClearedAfterLeaving(t *testing.T) {
	tr := NewTracker()
	tr.Observe(false)
	tr.Observe(true)
	tr.Observe(true)
	if !tr.MarkSpoken() {
		t.Fatal("MarkSpoken() = false while present")
	}
	tr.Observe(false)

	if tr.Spoken() {
		t.Error("Spoken() = true after LEFT_AFTER_SPEECH")
	}
	if tr.Present() {
		t.Error("Present() = true after leaving")
	}
}

func TestTracker_MarkSpokenWhileAbsent(t *testing.T) {
	tr := NewTracker()
	if tr.MarkSpoken() {
		t.Error("MarkSpoken() = true with nobody present")
	}
	if tr.Spoken() {
		t.Error("Spoken() = true after ignored MarkSpoken")
	}
}

func TestTracker_Idempotent(t *testing.T) {
	for _, detected := range []bool{true, false} {
		tr := NewTracker()
		tr.Observe(!detected)
		tr.Observe(detected)
		if ev, ok := tr.Observe(detected); ok {
			t.Errorf("repeated Observe(%v) emitted %s", detected, ev)
		}
	}
}

// Event counts must equal the number of presence edges for any sequence.
func TestTracker_EventsMatchEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		tr := NewTracker()
		prev := false
		var rising, falling, entered, left int

		for i := 0; i < 50; i++ {
			detected := rng.Intn(3) == 0
			if rng.Intn(4) == 0 {
				tr.MarkSpoken()
			}

			if !prev && detected {
				rising++
			}
			if prev && !detected {
				falling++
			}
			prev = detected

			ev, ok := tr.Observe(detected)
			if !ok {
				continue
			}
			switch ev {
			case EventEntered:
				entered++
			case EventLeft, EventLeftAfterSpeech:
				left++
			}
		}

		if entered != rising || left != falling {
			t.Fatalf("run %d: entered=%d rising=%d left=%d falling=%d", run, entered, rising, left, falling)
		}
	}
}
