// Package actuator keeps Nebula connected to its primary actuator.
//
// Client holds one WebSocket connection to the actuator and reconnects
// forever at a fixed interval until Disconnect is called. A background
// receive loop decodes the actuator's tagged messages for status reporting
// only; nothing it receives changes what is sent.
//
// Sends are best effort. When the connection is down, SendSignal returns
// false at once and nothing is queued for later.
package actuator
