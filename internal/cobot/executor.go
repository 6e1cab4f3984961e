package cobot

import "time"

// Logger defines the logging interface used by the cobot package.
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

// Executor moves the arm through a single step. Execute blocks until the
// pose has been reached and held.
type Executor interface {
	Execute(step Step) error
}

// LogExecutor is a dry-run executor. It logs each pose and holds it for a
// fixed delay instead of driving hardware.
type LogExecutor struct {
	Delay  time.Duration
	Logger Logger
}

// NewLogExecutor creates a dry-run executor holding each pose for delay.
func NewLogExecutor(delay time.Duration, logger Logger) *LogExecutor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogExecutor{Delay: delay, Logger: logger}
}

// Execute logs the step and sleeps for the configured delay.
func (e *LogExecutor) Execute(step Step) error {
	e.Logger.Debug("moving to pose", "angles", step.Angles[:], "speed", step.Speed)
	if e.Delay > 0 {
		time.Sleep(e.Delay)
	}
	return nil
}
