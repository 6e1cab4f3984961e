package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// deliveryPoint tags by robot, protocol and signal type; latency is a
// float field in milliseconds.
func deliveryPoint(robotID, protocol, signalType string, success bool, latency time.Duration, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDelivery,
		map[string]string{
			"robot_id":    robotID,
			"protocol":    protocol,
			"signal_type": signalType,
		},
		map[string]interface{}{
			"success":    success,
			"latency_ms": float64(latency) / float64(time.Millisecond),
		},
		at,
	)
}

// presencePoint tags by event name. Frame IDs are unbounded, so they are a
// field rather than a tag.
func presencePoint(event string, confidence float64, frameID int64, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementPresence,
		map[string]string{
			"event": event,
		},
		map[string]interface{}{
			"confidence": confidence,
			"frame_id":   frameID,
		},
		at,
	)
}
