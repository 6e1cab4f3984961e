package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/nebula-core/internal/robot"
	"github.com/nerrad567/nebula-core/internal/transport"
)

// DefaultAttemptTimeout bounds each per-robot delivery attempt.
const DefaultAttemptTimeout = 5 * time.Second

// Registry is the view of the robot registry the dispatcher needs.
// *robot.Registry satisfies it.
type Registry interface {
	Get(id string) (*robot.Config, error)
	Enabled() []robot.Config
	OnRemove(hook robot.RemoveHook)
}

// Connectors resolves the connector for a protocol.
// *transport.Set satisfies it.
type Connectors interface {
	For(p robot.Protocol) (transport.Connector, error)
	Invalidate(robotID string)
}

// Recorder receives one call per delivery attempt, for telemetry.
type Recorder interface {
	RecordDelivery(robotID, protocol, signalType string, success bool, latency time.Duration)
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher delivers signals to robots.
//
// Thread Safety: SendSignal and Test may be called concurrently.
type Dispatcher struct {
	registry   Registry
	connectors Connectors
	timeout    time.Duration

	recorder Recorder
	logger   Logger
	mu       sync.RWMutex
}

// New creates a dispatcher. A non-positive timeout uses DefaultAttemptTimeout.
// Robots removed from the registry have their cached connections released.
func New(registry Registry, connectors Connectors, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}

	d := &Dispatcher{
		registry:   registry,
		connectors: connectors,
		timeout:    timeout,
		logger:     noopLogger{},
	}
	registry.OnRemove(connectors.Invalidate)
	return d
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.mu.Lock()
	d.logger = logger
	d.mu.Unlock()
}

// SetRecorder sets the telemetry recorder. Nil disables recording.
func (d *Dispatcher) SetRecorder(recorder Recorder) {
	d.mu.Lock()
	d.recorder = recorder
	d.mu.Unlock()
}

// AttemptTimeout returns the timeout applied to each delivery attempt.
func (d *Dispatcher) AttemptTimeout() time.Duration {
	return d.timeout
}

// SendSignal delivers sig to every enabled robot, or only to targetID when
// it is non-empty. The set of robots is fixed when the call starts.
//
// It returns ErrTargetNotFound if targetID names an absent or disabled
// robot. Delivery failures are reported in the Report, never as errors.
func (d *Dispatcher) SendSignal(ctx context.Context, sig Signal, targetID string) (*Report, error) {
	if targetID == "" {
		return d.fanOut(ctx, sig, d.registry.Enabled()), nil
	}

	target, err := d.registry.Get(targetID)
	if err != nil || !target.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}
	return d.fanOut(ctx, sig, []robot.Config{*target}), nil
}

// Test sends a test signal to one robot, enabled or not.
func (d *Dispatcher) Test(ctx context.Context, robotID string) (*Report, error) {
	target, err := d.registry.Get(robotID)
	if err != nil {
		if errors.Is(err, robot.ErrRobotNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, robotID)
		}
		return nil, err
	}

	sig := NewSignal(TestSignalType, map[string]any{"message": "Test signal from Nebula"})
	return d.fanOut(ctx, sig, []robot.Config{*target}), nil
}

func (d *Dispatcher) fanOut(ctx context.Context, sig Signal, targets []robot.Config) *Report {
	report := &Report{
		SignalType: sig.Type,
		Timestamp:  sig.Timestamp,
		Total:      len(targets),
		Results:    make([]TargetResult, len(targets)),
	}

	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			report.Results[i] = d.attempt(ctx, sig, &targets[i])
		}(i)
	}
	wg.Wait()

	for _, res := range report.Results {
		if res.Success {
			report.Succeeded++
		}
	}

	logger, _ := d.observers()
	logger.Info("signal dispatched",
		"signal_type", sig.Type,
		"succeeded", report.Succeeded,
		"total", report.Total,
	)
	return report
}

// attempt makes one bounded delivery to r. The connector runs on its own
// goroutine so a transport that ignores ctx cannot hold the attempt past
// its timeout.
func (d *Dispatcher) attempt(parent context.Context, sig Signal, r *robot.Config) TargetResult {
	logger, recorder := d.observers()
	start := time.Now()
	res := TargetResult{RobotID: r.ID, Name: r.Name, Protocol: r.Protocol}

	defer func() {
		res.Duration = time.Since(start)
		if recorder != nil {
			recorder.RecordDelivery(r.ID, string(r.Protocol), sig.Type, res.Success, res.Duration)
		}
	}()

	conn, err := d.connectors.For(r.Protocol)
	if err != nil {
		logger.Warn("signal delivery failed",
			"robot_id", r.ID,
			"protocol", r.Protocol,
			"signal_type", sig.Type,
			"error", fmt.Errorf("%w: %w", ErrNoConnector, err),
		)
		return res
	}

	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()

	payload := Payload(sig, r)
	done := make(chan bool, 1)
	go func() {
		done <- conn.Deliver(ctx, r, payload)
	}()

	select {
	case ok := <-done:
		res.Success = ok
		if !ok {
			logger.Warn("signal delivery failed",
				"robot_id", r.ID,
				"protocol", r.Protocol,
				"signal_type", sig.Type,
			)
		}
	case <-ctx.Done():
		res.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
		conn.Invalidate(r.ID)
		logger.Warn("signal delivery abandoned",
			"robot_id", r.ID,
			"protocol", r.Protocol,
			"signal_type", sig.Type,
			"error", ctx.Err(),
		)
	}

	return res
}

func (d *Dispatcher) observers() (Logger, Recorder) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.logger, d.recorder
}
