package actuator

// Gesture is a named motion the actuator knows how to perform.
type Gesture struct {
	Name        string `json:"name"`
	Signal      string `json:"signal"`
	Description string `json:"description"`
}

// CustomSignal carries an arbitrary command in its data.
const CustomSignal = "custom"

var gestures = []Gesture{
	{Name: "wave", Signal: "wave_hand", Description: "Wave hello"},
	{Name: "nod", Signal: "nod_head", Description: "Nod head (yes)"},
	{Name: "thumbs_up", Signal: "thumbs_up", Description: "Thumbs up gesture"},
	{Name: "point", Signal: "point", Description: "Point forward"},
	{Name: "greet", Signal: "greet", Description: "Friendly greeting bow"},
	{Name: "celebrate", Signal: "celebrate", Description: "Celebration dance"},
	{Name: "home", Signal: "home", Description: "Return to home position"},
}

// Gestures returns the gesture catalogue.
func Gestures() []Gesture {
	return append([]Gesture(nil), gestures...)
}

// LookupGesture finds a gesture by name.
func LookupGesture(name string) (Gesture, bool) {
	for _, g := range gestures {
		if g.Name == name {
			return g, true
		}
	}
	return Gesture{}, false
}
