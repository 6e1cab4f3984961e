// Package transport delivers encoded signals to robots over their configured
// protocol.
//
// Each protocol has one Connector:
//
//   - HTTPConnector: a stateless POST per delivery.
//   - WebSocketConnector: one cached socket per robot, opened on first use.
//   - MQTTConnector: one shared broker session for every MQTT robot.
//   - SerialConnector: one cached open port per robot.
//
// Deliver never returns an error. Any failure is logged, reported as false
// and the cached handle for that robot is discarded so the next delivery
// starts from a fresh connection. Connectors do not retry within a call.
package transport
