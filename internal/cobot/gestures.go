package cobot

import (
	"fmt"
	"sort"
	"time"
)

// Pose is a set of six joint angles in degrees.
type Pose [6]float64

// Step moves the arm to a pose and holds it.
type Step struct {
	Angles Pose          `json:"angles"`
	Speed  int           `json:"speed"`
	Hold   time.Duration `json:"hold"`
}

// Gesture is a named sequence of steps.
type Gesture struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Steps   []Step `json:"steps"`
}

var homeStep = Step{Angles: Pose{}, Speed: 25, Hold: 2 * time.Second}

func step(speed int, hold time.Duration, angles ...float64) Step {
	var p Pose
	copy(p[:], angles)
	return Step{Angles: p, Speed: speed, Hold: hold}
}

// swing moves one joint back and forth from home.
func swing(joint int, amplitude float64, speed, count int) []Step {
	steps := make([]Step, 0, count*2)
	for i := 0; i < count; i++ {
		for _, a := range []float64{amplitude, -amplitude} {
			var p Pose
			p[joint-1] = a
			steps = append(steps, Step{Angles: p, Speed: speed, Hold: 500 * time.Millisecond})
		}
	}
	return steps
}

func sequence(parts ...[]Step) []Step {
	var out []Step
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var gestures = map[string]Gesture{
	"wave": {
		Name:    "wave",
		Message: "Waved hand!",
		Steps:   sequence([]Step{homeStep}, swing(3, 15, 30, 3), []Step{homeStep}),
	},
	"nod": {
		Name:    "nod",
		Message: "Nodding!",
		Steps:   sequence([]Step{homeStep}, swing(1, 10, 25, 3), []Step{homeStep}),
	},
	"thumbs_up": {
		Name:    "thumbs_up",
		Message: "Thumbs up!",
		Steps:   []Step{step(50, 1500*time.Millisecond, 0, -30, 60, -90, 90, 0), homeStep},
	},
	"point": {
		Name:    "point",
		Message: "Pointing!",
		Steps:   []Step{step(50, 1500*time.Millisecond, 0, 20, 40, -90, 0, 0), homeStep},
	},
	"greet": {
		Name:    "greet",
		Message: "Greeting!",
		Steps: sequence(
			[]Step{
				step(40, 800*time.Millisecond, 0, 0, -30, 0, 0, 0),
				step(40, 500*time.Millisecond),
			},
			swing(3, 15, 30, 3),
			[]Step{homeStep},
		),
	},
	"celebrate": {
		Name:    "celebrate",
		Message: "Celebrating!",
		Steps: []Step{
			step(80, 300*time.Millisecond, 0, -45, 90, -90, 90, 0),
			step(80, 300*time.Millisecond, 0, -30, 100, -80, 100, 0),
			step(80, 300*time.Millisecond, 0, -45, 90, -90, 90, 0),
			step(80, 300*time.Millisecond, 0, -30, 100, -80, 100, 0),
			homeStep,
		},
	},
	"home": {
		Name:    "home",
		Message: "Going home",
		Steps:   []Step{homeStep},
	},
}

// signalActions maps inbound signal types to gesture names.
var signalActions = map[string]string{
	"wave_hand":                "wave",
	"user_left_after_speaking": "wave",
	"nod_head":                 "nod",
	"nod":                      "nod",
	"thumbs_up":                "thumbs_up",
	"point":                    "point",
	"greet":                    "greet",
	"celebrate":                "celebrate",
	"go_to_celebrate_pose":     "celebrate",
	"hold_and_home":            "home",
	"home":                     "home",
}

// LookupGesture returns the gesture with the given name.
func LookupGesture(name string) (Gesture, bool) {
	g, ok := gestures[name]
	return g, ok
}

// GestureNames lists the known gestures in name order.
func GestureNames() []string {
	names := make([]string, 0, len(gestures))
	for name := range gestures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActionFor resolves the gesture name for a signal. A "custom" signal, or
// any unmapped signal, takes its action from data.command or data.action.
func ActionFor(signalType string, data map[string]any) (string, error) {
	if action, ok := signalActions[signalType]; ok {
		return action, nil
	}
	for _, key := range []string{"command", "action"} {
		if action, ok := data[key].(string); ok && action != "" {
			return action, nil
		}
	}
	return "", fmt.Errorf("%w: unknown signal type %q", ErrUnknownAction, signalType)
}
