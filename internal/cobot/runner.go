package cobot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultStopTimeout bounds how long Stop waits for a gesture to wind down.
const DefaultStopTimeout = 3 * time.Second

// Runner plays gestures one at a time on a background worker.
//
// Thread Safety: all methods are safe for concurrent use. Concurrent Run
// calls are serialised.
type Runner struct {
	exec        Executor
	stopTimeout time.Duration
	logger      Logger

	jobMu sync.Mutex
	stop  atomic.Bool

	closed atomic.Bool

	mu       sync.Mutex
	current  string
	finished chan struct{}

	played atomic.Uint64
}

// NewRunner creates a runner driving exec. A non-positive stopTimeout
// selects DefaultStopTimeout.
func NewRunner(exec Executor, stopTimeout time.Duration) *Runner {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Runner{
		exec:        exec,
		stopTimeout: stopTimeout,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Run plays g and blocks until it finishes. When ctx is cancelled the
// gesture is stopped after its current pose; Run then waits at most the
// stop timeout for the worker to exit.
func (r *Runner) Run(ctx context.Context, g Gesture) error {
	r.jobMu.Lock()
	defer r.jobMu.Unlock()

	if r.closed.Load() {
		return ErrClosed
	}

	r.stop.Store(false)
	finished := make(chan struct{})
	var runErr error

	r.mu.Lock()
	r.current = g.Name
	r.finished = finished
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.current = ""
		r.finished = nil
		r.mu.Unlock()
	}()

	go func() {
		defer close(finished)
		runErr = r.play(g)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		if !r.Stop(r.stopTimeout) {
			r.logger.Warn("gesture abandoned after stop timeout", "gesture", g.Name)
			return fmt.Errorf("%w: %s", ErrStopTimeout, g.Name)
		}
	}

	if runErr == nil {
		r.played.Add(1)
	}
	return runErr
}

func (r *Runner) play(g Gesture) error {
	r.logger.Info("playing gesture", "gesture", g.Name, "steps", len(g.Steps))
	for i, s := range g.Steps {
		if r.stop.Load() {
			r.logger.Info("gesture stopped", "gesture", g.Name, "completed_steps", i)
			return fmt.Errorf("%w: %s after %d of %d steps", ErrStopped, g.Name, i, len(g.Steps))
		}
		if err := r.exec.Execute(s); err != nil {
			return fmt.Errorf("%s step %d: %w", g.Name, i+1, err)
		}
	}
	return nil
}

// Stop asks the current gesture to stop and waits up to timeout for it.
// It reports whether the runner is idle on return.
func (r *Runner) Stop(timeout time.Duration) bool {
	r.stop.Store(true)

	r.mu.Lock()
	finished := r.finished
	r.mu.Unlock()
	if finished == nil {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-finished:
		return true
	case <-timer.C:
		return false
	}
}

// Current returns the gesture being played, or "" when idle.
func (r *Runner) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Played returns the number of gestures completed without error.
func (r *Runner) Played() uint64 {
	return r.played.Load()
}

// Close stops any gesture in progress and rejects further runs.
func (r *Runner) Close() error {
	r.closed.Store(true)
	if !r.Stop(r.stopTimeout) {
		return ErrStopTimeout
	}
	return nil
}
