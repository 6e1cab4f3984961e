package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/nebula-core/internal/infrastructure/influxdb"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Robots        RobotMetrics     `json:"robots"`
	Presence      *PresenceMetrics `json:"presence,omitempty"`
	Actuator      *ActuatorMetrics `json:"actuator,omitempty"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	Telemetry     *influxdb.Stats  `json:"telemetry,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// RobotMetrics contains robot registry statistics.
type RobotMetrics struct {
	Total      int            `json:"total"`
	Enabled    int            `json:"enabled"`
	ByProtocol map[string]int `json:"by_protocol"`
}

// PresenceMetrics contains presence session counters.
type PresenceMetrics struct {
	Present bool   `json:"present"`
	Frames  uint64 `json:"frames"`
	Events  uint64 `json:"events"`
	Dropped uint64 `json:"dropped"`
}

// ActuatorMetrics contains primary actuator link statistics.
type ActuatorMetrics struct {
	State      string `json:"state"`
	Attempts   uint64 `json:"attempts"`
	Connects   uint64 `json:"connects"`
	SignalsTx  uint64 `json:"signals_tx"`
	MessagesRx uint64 `json:"messages_rx"`
}

// MQTTMetrics contains MQTT input client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Robots: RobotMetrics{ByProtocol: make(map[string]int)},
	}

	for _, rb := range s.registry.List() {
		metrics.Robots.Total++
		if rb.Enabled {
			metrics.Robots.Enabled++
		}
		metrics.Robots.ByProtocol[string(rb.Protocol)]++
	}

	if s.presence != nil {
		st := s.presence.State()
		metrics.Presence = &PresenceMetrics{
			Present: st.Present,
			Frames:  st.Frames,
			Events:  st.Events,
			Dropped: st.Dropped,
		}
	}

	if s.actuator != nil {
		st := s.actuator.Status()
		metrics.Actuator = &ActuatorMetrics{
			State:      st.State,
			Attempts:   st.Attempts,
			Connects:   st.Connects,
			SignalsTx:  st.SignalsTx,
			MessagesRx: st.MessagesRx,
		}
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	if s.telemetry != nil {
		stats := s.telemetry.Stats()
		metrics.Telemetry = &stats
	}

	writeJSON(w, http.StatusOK, metrics)
}
