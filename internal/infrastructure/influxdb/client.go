package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
)

// Measurement names.
const (
	// MeasurementDelivery holds one point per robot delivery attempt.
	MeasurementDelivery = "signal_delivery"

	// MeasurementPresence holds one point per presence transition.
	MeasurementPresence = "presence_event"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Logger is the logging interface used by the telemetry client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Stats counts telemetry points since Connect.
type Stats struct {
	Written     uint64 `json:"written"`
	Skipped     uint64 `json:"skipped"`
	WriteErrors uint64 `json:"write_errors"`
}

// Client records delivery and presence telemetry in InfluxDB.
//
// Points are handed to the client library's batching writer, so Record
// methods never block on the network. Asynchronous write failures are logged
// and counted; they never reach the dispatcher or the presence session.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Record methods on a closed client are counted as skipped.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string

	// mu is held for reading across every write so Close never tears the
	// writer down under an in-flight point.
	mu        sync.RWMutex
	connected bool

	logger atomic.Pointer[Logger]

	written     atomic.Uint64
	skipped     atomic.Uint64
	writeErrors atomic.Uint64

	errorsDone chan struct{}
}

// Connect pings the server and opens a batching writer for cfg.Bucket.
// It returns ErrDisabled when telemetry is switched off.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize(cfg)).
		SetFlushInterval(flushIntervalMS(cfg))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnectionFailed, cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s not healthy", ErrConnectionFailed, cfg.URL)
	}

	c := &Client{
		client:     client,
		writeAPI:   client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:     cfg.Bucket,
		errorsDone: make(chan struct{}),
	}
	c.SetLogger(noopLogger{})
	c.connected = true

	go c.watchErrors(c.writeAPI.Errors())

	return c, nil
}

func batchSize(cfg config.InfluxDBConfig) uint {
	if cfg.BatchSize <= 0 {
		return defaultBatchSize
	}
	return uint(cfg.BatchSize) //nolint:gosec // positive, checked above
}

func flushIntervalMS(cfg config.InfluxDBConfig) uint {
	interval := time.Duration(cfg.FlushInterval) * time.Second
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return uint(interval / time.Millisecond) //nolint:gosec // positive, checked above
}

// SetLogger sets the logger for asynchronous write failures.
func (c *Client) SetLogger(logger Logger) {
	c.logger.Store(&logger)
}

func (c *Client) log() Logger {
	if l := c.logger.Load(); l != nil {
		return *l
	}
	return noopLogger{}
}

// watchErrors drains the writer's error channel until the client closes.
func (c *Client) watchErrors(errs <-chan error) {
	defer close(c.errorsDone)
	for err := range errs {
		c.log().Warn("telemetry write failed", "bucket", c.bucket, "error", err)
		c.writeErrors.Add(1)
	}
}

// RecordDelivery writes the outcome of one per-robot delivery attempt.
// It satisfies dispatch.Recorder.
//
//	client.RecordDelivery("arm-1", "websocket", "wave_hand", true, 12*time.Millisecond)
func (c *Client) RecordDelivery(robotID, protocol, signalType string, success bool, latency time.Duration) {
	c.record(deliveryPoint(robotID, protocol, signalType, success, latency, time.Now()))
}

// RecordPresenceEvent writes a presence transition with the frame that
// caused it. It satisfies presence.Recorder.
func (c *Client) RecordPresenceEvent(event string, confidence float64, frameID int64) {
	c.record(presencePoint(event, confidence, frameID, time.Now()))
}

func (c *Client) record(p *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		c.skipped.Add(1)
		return
	}
	c.writeAPI.WritePoint(p)
	c.written.Add(1)
}

// Stats returns the point counters.
func (c *Client) Stats() Stats {
	return Stats{
		Written:     c.written.Load(),
		Skipped:     c.skipped.Load(),
		WriteErrors: c.writeErrors.Load(),
	}
}

// Flush sends all buffered points. It is a no-op after Close.
func (c *Client) Flush() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.connected {
		c.writeAPI.Flush()
	}
}

// IsConnected reports whether the client has not been closed. Use
// HealthCheck for an active probe.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// Close flushes pending points and releases the client. Calling Close more
// than once is safe.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	c.client.Close()
	c.mu.Unlock()

	<-c.errorsDone

	return nil
}
