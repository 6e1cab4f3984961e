// Package mqtt provides MQTT client connectivity for Nebula Core.
//
// This package manages:
//   - Connection to a broker with automatic reconnect after a lost session
//   - Fire-and-forget publishing
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) on nebula/system/status
//
// # Architecture
//
// Robots configured with the mqtt protocol receive signals through one
// shared Client owned by the transport layer. The same package backs the
// optional presence input bridge, which subscribes to detector frames and
// speech notifications.
//
//	Nebula ── publish ──▶ Broker ──▶ robot controllers
//	Detector ── publish ──▶ Broker ──▶ Nebula (presence input)
//
// # Security Considerations
//
//   - Set cfg.Broker.TLS for any broker reachable beyond localhost
//   - Credentials come from the robot record or NEBULA_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishAsync("robots/arm-1/cmd", payload, 0, false)
package mqtt
