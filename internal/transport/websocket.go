package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/nebula-core/internal/robot"
)

const (
	// defaultWSHandshakeTimeout bounds the opening handshake.
	defaultWSHandshakeTimeout = 5 * time.Second

	// defaultWSWriteTimeout bounds a frame write when the context has no deadline.
	defaultWSWriteTimeout = 5 * time.Second
)

// wsEntry owns the cached socket for one robot. mu serialises writes and
// (re)connection; the reader goroutine only ever closes.
type wsEntry struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// WebSocketConnector keeps one socket per robot, opened lazily on the first
// delivery and reused until a send or read fails.
type WebSocketConnector struct {
	dialer *websocket.Dialer

	entries map[string]*wsEntry
	mu      sync.Mutex

	logger Logger
}

// NewWebSocketConnector creates a WebSocket connector.
func NewWebSocketConnector() *WebSocketConnector {
	return &WebSocketConnector{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultWSHandshakeTimeout,
		},
		entries: make(map[string]*wsEntry),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the connector.
func (c *WebSocketConnector) SetLogger(logger Logger) {
	c.logger = logger
}

// Protocol implements Connector.
func (c *WebSocketConnector) Protocol() robot.Protocol {
	return robot.ProtocolWebSocket
}

// Deliver implements Connector. The payload is sent as one text frame.
func (c *WebSocketConnector) Deliver(ctx context.Context, r *robot.Config, payload map[string]any) bool {
	body, err := encode(payload)
	if err != nil {
		c.logger.Warn("websocket delivery failed", "robot_id", r.ID, "error", err)
		return false
	}

	entry := c.entry(r.ID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.closed {
		c.logger.Warn("websocket delivery failed", "robot_id", r.ID, "error", ErrClosed)
		return false
	}

	if entry.conn == nil {
		conn, err := c.dial(ctx, r)
		if err != nil {
			c.logger.Warn("websocket connect failed", "robot_id", r.ID, "url", r.URL, "error", err)
			return false
		}
		entry.conn = conn
		go c.readLoop(r.ID, entry, conn)
		c.logger.Debug("websocket connected", "robot_id", r.ID, "url", r.URL)
	}

	conn := entry.conn
	if err := conn.SetWriteDeadline(writeDeadline(ctx, defaultWSWriteTimeout)); err == nil {
		err = conn.WriteMessage(websocket.TextMessage, body)
		if err == nil {
			return true
		}
		c.logger.Warn("websocket send failed", "robot_id", r.ID, "error", err)
	}

	conn.Close() //nolint:errcheck // Dropping a failed socket
	entry.conn = nil
	return false
}

func (c *WebSocketConnector) dial(ctx context.Context, r *robot.Config) (*websocket.Conn, error) {
	header := http.Header{}
	for k, v := range r.Headers {
		header.Set(k, v)
	}

	conn, resp, err := c.dialer.DialContext(ctx, r.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // Handshake response body is not used
	}
	return conn, err
}

// readLoop consumes inbound frames so control frames are answered, and
// drops the cached socket as soon as the peer goes away.
func (c *WebSocketConnector) readLoop(robotID string, entry *wsEntry, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			entry.mu.Lock()
			if entry.conn == conn {
				conn.Close() //nolint:errcheck // Peer already gone
				entry.conn = nil
				c.logger.Debug("websocket closed by peer", "robot_id", robotID, "error", err)
			}
			entry.mu.Unlock()
			return
		}
	}
}

func (c *WebSocketConnector) entry(robotID string) *wsEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[robotID]
	if !ok {
		e = &wsEntry{}
		c.entries[robotID] = e
	}
	return e
}

// Connected reports whether a socket is cached for the robot.
func (c *WebSocketConnector) Connected(robotID string) bool {
	c.mu.Lock()
	e, ok := c.entries[robotID]
	c.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn != nil
}

// Invalidate implements Connector.
func (c *WebSocketConnector) Invalidate(robotID string) {
	c.mu.Lock()
	e, ok := c.entries[robotID]
	delete(c.entries, robotID)
	c.mu.Unlock()

	if ok {
		e.close()
	}
}

// Close implements Connector.
func (c *WebSocketConnector) Close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*wsEntry)
	c.mu.Unlock()

	for _, e := range entries {
		e.close()
	}
	return nil
}

func (e *wsEntry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.conn != nil {
		deadline := time.Now().Add(time.Second)
		e.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // Best-effort close frame
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		e.conn.Close() //nolint:errcheck // Releasing the socket
		e.conn = nil
	}
}
