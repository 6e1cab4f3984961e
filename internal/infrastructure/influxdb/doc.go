// Package influxdb records Nebula telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements are
// written:
//   - signal_delivery: one point per robot per dispatched signal, tagged by
//     robot, protocol and signal type, with success and latency fields
//   - presence_event: one point per presence edge, with the confidence and
//     frame ID of the frame that caused it
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetLogger(log.Component("telemetry"))
//
//	dispatcher.SetRecorder(client)
//	session.SetRecorder(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write failures happen in the background. They are logged and counted in
// Stats, never returned to the recorder's caller. Connection and health
// check errors are returned directly.
package influxdb
