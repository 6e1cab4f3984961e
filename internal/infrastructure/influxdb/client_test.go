package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
	"github.com/nerrad567/nebula-core/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB on the default port.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "nebula-dev-token",
		Org:           "nebula",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		// Quick check: try to connect
		cfg := testConfig()
		client, err := influxdb.Connect(context.Background(), cfg)
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if err == nil {
		t.Fatal("Connect() should return error when disabled")
	}
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Non-existent port

	_, err := influxdb.Connect(context.Background(), cfg)
	if err == nil {
		t.Fatal("Connect() should return error for invalid URL")
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()
	cfg.BatchSize = 0     // Should use default
	cfg.FlushInterval = 0 // Should use default

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect() with default batch settings")
	}
}

func TestConnect_NegativeBatchSettings(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()
	cfg.BatchSize = -5     // Negative, should use default
	cfg.FlushInterval = -1 // Negative, should use default

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect() with negative batch settings")
	}
}

// =============================================================================
// Health Check Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	// Create already cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = client.HealthCheck(ctx)
	if err == nil {
		t.Error("HealthCheck() should return error for cancelled context")
	}
}

// =============================================================================
// Write Tests
// =============================================================================

// fakeInflux answers pings and captures line protocol writes.
type fakeInflux struct {
	mu     sync.Mutex
	writes []string

	// writeStatus, when set, rejects every write with that status.
	writeStatus int
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		if f.writeStatus != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.writeStatus)
			io.WriteString(w, `{"code":"invalid","message":"unable to parse points"}`) //nolint:errcheck // test server
			return
		}
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func connectFake(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()
	return connectTo(t, &fakeInflux{})
}

func connectTo(t *testing.T, fake *fakeInflux) (*influxdb.Client, *fakeInflux) {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	cfg := testConfig()
	cfg.URL = ts.URL
	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return client, fake
}

func waitForBody(t *testing.T, fake *fakeInflux, want string) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if body := fake.body(); strings.Contains(body, want) {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no write containing %q, got %q", want, fake.body())
	return ""
}

func TestRecordDelivery(t *testing.T) {
	client, fake := connectFake(t)
	defer client.Close()

	client.RecordDelivery("arm-1", "mqtt", "wave_hand", true, 3*time.Millisecond)
	client.Flush()

	body := waitForBody(t, fake, influxdb.MeasurementDelivery)
	if !strings.Contains(body, "robot_id=arm-1") || !strings.Contains(body, "success=true") {
		t.Errorf("write body = %q", body)
	}

	stats := client.Stats()
	if stats.Written != 1 || stats.WriteErrors != 0 {
		t.Errorf("Stats() = %+v, want 1 written and no write errors", stats)
	}
}

func TestRecordPresenceEvent(t *testing.T) {
	client, fake := connectFake(t)
	defer client.Close()

	client.RecordPresenceEvent("ENTERED", 0.91, 42)
	client.Flush()

	body := waitForBody(t, fake, influxdb.MeasurementPresence)
	if !strings.Contains(body, "event=ENTERED") || !strings.Contains(body, "frame_id=42i") {
		t.Errorf("write body = %q", body)
	}
}

// warnLogger counts Warn calls.
type warnLogger struct {
	mu    sync.Mutex
	warns int
}

func (l *warnLogger) Debug(string, ...any) {}
func (l *warnLogger) Info(string, ...any)  {}
func (l *warnLogger) Error(string, ...any) {}

func (l *warnLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func (l *warnLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warns
}

func TestRecordDelivery_WriteRejected(t *testing.T) {
	client, _ := connectTo(t, &fakeInflux{writeStatus: http.StatusBadRequest})
	defer client.Close()

	logger := &warnLogger{}
	client.SetLogger(logger)

	client.RecordDelivery("arm-3", "http", "wave_hand", false, time.Millisecond)
	client.Flush()

	deadline := time.Now().Add(3 * time.Second)
	for client.Stats().WriteErrors == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := client.Stats().WriteErrors; got != 1 {
		t.Fatalf("Stats().WriteErrors = %d, want 1", got)
	}
	if logger.count() != 1 {
		t.Errorf("write failure logged %d times, want 1", logger.count())
	}
}

func TestHealthCheck_Fake(t *testing.T) {
	client, _ := connectFake(t)
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	client, fake := connectFake(t)

	client.RecordDelivery("arm-2", "serial", "nod_head", false, time.Second)
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	waitForBody(t, fake, "robot_id=arm-2")

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Writes after close are dropped and counted.
	client.RecordDelivery("arm-2", "serial", "nod_head", true, 0)
	client.Flush()
	if got := client.Stats().Skipped; got != 1 {
		t.Errorf("Stats().Skipped = %d, want 1", got)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
