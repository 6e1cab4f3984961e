// Package cobot is the actuator side of the Nebula link: a WebSocket server
// that maps incoming signals to named gestures and plays them on an arm.
//
// Gestures are sequences of joint poses. Runner plays one gesture at a time
// on a dedicated worker goroutine. Stopping sets a flag the worker checks
// between poses, and the caller waits a bounded time for it to finish; a
// pose in progress is never interrupted.
package cobot
