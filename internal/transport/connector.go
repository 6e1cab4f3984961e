package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
	"github.com/nerrad567/nebula-core/internal/robot"
)

// Connector delivers payloads to robots over one protocol.
type Connector interface {
	// Protocol reports which robots this connector serves.
	Protocol() robot.Protocol

	// Deliver sends payload to r and reports whether the transport accepted
	// it. Failures are logged, never returned, and invalidate the cached
	// handle for r.
	Deliver(ctx context.Context, r *robot.Config, payload map[string]any) bool

	// Invalidate discards any handle cached for the robot.
	Invalidate(robotID string)

	// Close releases every cached handle.
	Close() error
}

// Logger defines the logging interface used by connectors.
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

// encode serialises a payload for the wire.
func encode(payload map[string]any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return data, nil
}

// writeDeadline returns the context deadline, or now+fallback without one.
func writeDeadline(ctx context.Context, fallback time.Duration) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	return time.Now().Add(fallback)
}

// Set routes robots to the connector for their protocol.
type Set struct {
	connectors map[robot.Protocol]Connector
}

// NewSet builds a Set from connectors. A later connector for the same
// protocol replaces an earlier one.
func NewSet(connectors ...Connector) *Set {
	s := &Set{connectors: make(map[robot.Protocol]Connector, len(connectors))}
	for _, c := range connectors {
		s.connectors[c.Protocol()] = c
	}
	return s
}

// NewDefaultSet builds the standard connectors for all four protocols.
func NewDefaultSet(mqttCfg config.MQTTConfig, logger Logger) *Set {
	httpConn := NewHTTPConnector(nil)
	wsConn := NewWebSocketConnector()
	mqttConn := NewMQTTConnector(mqttCfg)
	serialConn := NewSerialConnector()

	if logger != nil {
		httpConn.SetLogger(logger)
		wsConn.SetLogger(logger)
		mqttConn.SetLogger(logger)
		serialConn.SetLogger(logger)
	}

	return NewSet(httpConn, wsConn, mqttConn, serialConn)
}

// For returns the connector for protocol p.
func (s *Set) For(p robot.Protocol) (Connector, error) {
	c, ok := s.connectors[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, p)
	}
	return c, nil
}

// Protocols lists the protocols this set can deliver over.
func (s *Set) Protocols() []robot.Protocol {
	protocols := make([]robot.Protocol, 0, len(s.connectors))
	for p := range s.connectors {
		protocols = append(protocols, p)
	}
	sort.Slice(protocols, func(i, j int) bool { return protocols[i] < protocols[j] })
	return protocols
}

// Invalidate discards the robot's cached handles on every connector.
func (s *Set) Invalidate(robotID string) {
	for _, c := range s.connectors {
		c.Invalidate(robotID)
	}
}

// Close closes every connector.
func (s *Set) Close() error {
	var errs []error
	for _, c := range s.connectors {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
