// Package presence turns per-frame person detections into edge-triggered
// events and routes them to the actuator and the robot fleet.
//
// Tracker holds the two flags that decide when an event fires: whether a
// person is present and whether they spoke while present. Session owns one
// Tracker, applies frames strictly in arrival order and hands events to a
// single consumer goroutine so slow delivery never blocks detection.
//
// Event routing:
//
//	ENTERED            actuator: entered signal
//	LEFT_AFTER_SPEECH  actuator: left-after-speech signal, fleet fan-out, actuator: left signal
//	LEFT               actuator: left signal
package presence
