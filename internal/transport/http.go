package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/nebula-core/internal/robot"
)

const (
	// defaultHTTPTimeout caps a request when the caller's context has no deadline.
	defaultHTTPTimeout = 10 * time.Second

	// maxDrainBytes is how much of a response body is read to allow connection reuse.
	maxDrainBytes = 64 << 10
)

// HTTPConnector POSTs each payload as a JSON body to the robot's URL.
// It holds no per-robot state.
type HTTPConnector struct {
	client *http.Client
	logger Logger
}

// NewHTTPConnector creates an HTTP connector. A nil client gets a default
// client with a 10s timeout.
func NewHTTPConnector(client *http.Client) *HTTPConnector {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPConnector{client: client, logger: noopLogger{}}
}

// SetLogger sets the logger for the connector.
func (c *HTTPConnector) SetLogger(logger Logger) {
	c.logger = logger
}

// Protocol implements Connector.
func (c *HTTPConnector) Protocol() robot.Protocol {
	return robot.ProtocolHTTP
}

// Deliver implements Connector. Any non-2xx status is a failed delivery.
func (c *HTTPConnector) Deliver(ctx context.Context, r *robot.Config, payload map[string]any) bool {
	if err := c.post(ctx, r, payload); err != nil {
		c.logger.Warn("http delivery failed", "robot_id", r.ID, "url", r.URL, "error", err)
		return false
	}
	return true
}

func (c *HTTPConnector) post(ctx context.Context, r *robot.Config, payload map[string]any) error {
	body, err := encode(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes)) //nolint:errcheck // Best-effort drain

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return nil
}

// Invalidate implements Connector. HTTP keeps no per-robot handle.
func (c *HTTPConnector) Invalidate(string) {}

// Close implements Connector.
func (c *HTTPConnector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
