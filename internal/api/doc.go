// Package api implements the HTTP control API for Nebula.
//
// This package provides:
//   - presence input (detector frames, "user spoke" notifications) and state
//   - signal fan-out to the robot fleet, with the per-robot delivery report
//   - robot registry management, targeted test signals and serial port listing
//   - primary actuator status, gesture triggers and custom signals
//   - runtime metrics
//   - middleware stack (request ID, logging, recovery, CORS, body size limit)
//
// # Architecture
//
// The API sits beside the presence pipeline. Frames posted here take the
// same path as frames from the MQTT input bridge: they are applied to the
// presence Session, which routes events to the actuator and the fleet.
//
// # Graceful Degradation
//
// Presence and actuator are optional. When either is not configured its
// endpoints answer 503 while the rest of the API keeps working.
package api
