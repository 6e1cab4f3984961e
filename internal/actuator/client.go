package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/nebula-core/internal/dispatch"
	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
)

// Default timing for the actuator connection.
const (
	defaultRetryInterval  = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultWriteTimeout   = 5 * time.Second

	// defaultStopTimeout bounds how long Disconnect waits for the loop to exit.
	defaultStopTimeout = 5 * time.Second
)

// State is the connection state of the actuator client.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config configures the actuator client.
type Config struct {
	// URL is the actuator's WebSocket endpoint.
	URL  string
	Host string
	Port int

	// RetryInterval is the fixed wait between connection attempts.
	// Default: 5 seconds.
	RetryInterval time.Duration

	// ConnectTimeout bounds the opening handshake. Default: 10 seconds.
	ConnectTimeout time.Duration

	// PingInterval enables keep-alive pings. Zero disables them.
	PingInterval time.Duration

	// PongTimeout is how long to wait for a pong before declaring the link dead.
	PongTimeout time.Duration

	// WriteTimeout bounds each outbound frame. Default: 5 seconds.
	WriteTimeout time.Duration
}

// NewConfig builds a client config from the service configuration.
func NewConfig(cfg *config.Config) Config {
	a := cfg.Actuator
	return Config{
		URL:           cfg.ActuatorURL(),
		Host:          a.Host,
		Port:          a.Port,
		RetryInterval: time.Duration(a.RetryInterval) * time.Second,
		PingInterval:  time.Duration(a.PingInterval) * time.Second,
		PongTimeout:   time.Duration(a.PongTimeout) * time.Second,
		WriteTimeout:  time.Duration(a.WriteTimeout) * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.PingInterval > 0 && c.PongTimeout <= 0 {
		c.PongTimeout = c.PingInterval
	}
	return c
}

// Status is a point-in-time view of the client for reporting.
type Status struct {
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	URL       string `json:"url"`
	Host      string `json:"host"`
	Port      int    `json:"port"`

	// Greeted is true once any message arrived on the current connection.
	Greeted bool `json:"greeted"`

	Attempts   uint64 `json:"attempts"`
	Connects   uint64 `json:"connects"`
	SignalsTx  uint64 `json:"signals_tx"`
	MessagesRx uint64 `json:"messages_rx"`

	LastMessage   *Message   `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Logger interface for optional logging.
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

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Client maintains the connection to the primary actuator.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Writes are serialised; the receive loop is the only reader.
//
// Reconnection:
//   - Every lost or failed connection is retried after RetryInterval, forever.
//   - Only Disconnect (or cancelling the Start context) stops the loop.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	state atomic.Int32

	conn   *websocket.Conn
	connMu sync.Mutex

	// writeMu serialises data frames; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	greeted    atomic.Bool
	attempts   atomic.Uint64
	connects   atomic.Uint64
	signalsTx  atomic.Uint64
	messagesRx atomic.Uint64
	lastMsg    atomic.Pointer[Message]
	lastMsgAt  atomic.Int64

	onMessage   func(Message)
	onMessageMu sync.RWMutex

	started atomic.Bool
	done    *closeOnce
	stopped chan struct{}

	logger Logger
}

// NewClient creates an actuator client. Call Start to begin connecting.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		done:    newCloseOnce(),
		stopped: make(chan struct{}),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the client. Call before Start.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// SetOnMessage registers a callback for every decoded inbound message.
func (c *Client) SetOnMessage(fn func(Message)) {
	c.onMessageMu.Lock()
	c.onMessage = fn
	c.onMessageMu.Unlock()
}

// Start launches the connect loop in the background. It returns at once;
// calling it again has no effect.
func (c *Client) Start(ctx context.Context) {
	if c.isClosed() {
		c.logger.Warn("actuator client already closed, not starting", "url", c.cfg.URL)
		return
	}
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run(ctx)
}

// run is the connect/receive/retry loop.
func (c *Client) run(ctx context.Context) {
	defer close(c.stopped)
	defer c.setState(StateDisconnected)

	// Disconnect also aborts a dial in progress.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if c.isClosed() || ctx.Err() != nil {
			return
		}

		c.setState(StateConnecting)
		attempt := c.attempts.Add(1)
		c.logger.Debug("connecting to actuator", "url", c.cfg.URL, "attempt", attempt)

		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(StateDisconnected)
			c.logger.Warn("actuator connection failed",
				"url", c.cfg.URL,
				"attempt", attempt,
				"retry_in", c.cfg.RetryInterval.String(),
				"error", err,
			)
		} else {
			c.attach(conn)
			c.receive(conn)
			c.detach(conn)
		}

		if !c.wait(ctx) {
			return
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(dialCtx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // Handshake response body is not used
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// wait sleeps for the retry interval. It returns false on shutdown.
func (c *Client) wait(ctx context.Context) bool {
	timer := time.NewTimer(c.cfg.RetryInterval)
	defer timer.Stop()

	select {
	case <-c.done.Done():
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) attach(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.greeted.Store(false)
	c.connects.Add(1)
	c.setState(StateConnected)
	c.logger.Info("actuator connected", "url", c.cfg.URL, "attempts", c.attempts.Load())

	// Disconnect may have run between dial and attach.
	if c.isClosed() {
		conn.Close() //nolint:errcheck // Shutting down
	}
}

func (c *Client) detach(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()

	conn.Close() //nolint:errcheck // Connection already failed
	c.greeted.Store(false)
	c.setState(StateDisconnected)

	if !c.isClosed() {
		c.logger.Warn("actuator disconnected, will reconnect", "url", c.cfg.URL, "retry_in", c.cfg.RetryInterval.String())
	}
}

// receive reads frames until the connection fails.
func (c *Client) receive(conn *websocket.Conn) {
	readTimeout := c.cfg.PingInterval + c.cfg.PongTimeout
	extend := func() {
		if c.cfg.PingInterval > 0 {
			conn.SetReadDeadline(time.Now().Add(readTimeout)) //nolint:errcheck // Surfaces on the next read
		}
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	stop := make(chan struct{})
	defer close(stop)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(conn, stop)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Debug("actuator read failed", "error", err)
			}
			return
		}
		extend()
		c.handleFrame(data)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("actuator ping failed", "error", err)
				conn.Close() //nolint:errcheck // Forces the read loop to exit
				return
			}
		}
	}
}

// handleFrame records any inbound frame and decodes it for logging.
func (c *Client) handleFrame(data []byte) {
	c.messagesRx.Add(1)
	c.lastMsgAt.Store(time.Now().UnixNano())
	if c.greeted.CompareAndSwap(false, true) {
		c.logger.Debug("actuator link ready", "url", c.cfg.URL)
	}

	msg, err := decodeMessage(data)
	if err != nil {
		c.logger.Warn("actuator sent undecodable message", "error", err)
		return
	}
	c.lastMsg.Store(&msg)

	switch msg.Type {
	case MessageConnected:
		c.logger.Info("actuator greeting", "message", msg.Message)
	case MessageResponse:
		c.logger.Debug("actuator response", "signal_type", msg.SignalType, "result", string(msg.Result))
	case MessageError:
		c.logger.Warn("actuator reported error", "message", msg.Message)
	default:
		c.logger.Debug("actuator message", "type", msg.Type)
	}

	c.onMessageMu.RLock()
	fn := c.onMessage
	c.onMessageMu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

// Send writes {signalType, timestamp, data} to the actuator.
// It returns ErrNotConnected at once when there is no live connection.
func (c *Client) Send(signalType string, data map[string]any) error {
	if c.isClosed() {
		return ErrClosed
	}
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(dispatch.NewSignal(signalType, data))
	if err != nil {
		return fmt.Errorf("encoding signal: %w", err)
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)) //nolint:errcheck // Surfaces on write
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()

	if err != nil {
		// Closing makes the receive loop exit and the connect loop take over.
		c.setState(StateDisconnected)
		conn.Close() //nolint:errcheck // Connection is unusable
		return fmt.Errorf("sending %s: %w", signalType, err)
	}

	c.signalsTx.Add(1)
	return nil
}

// SendSignal is Send reporting only success. Failures are logged.
func (c *Client) SendSignal(signalType string, data map[string]any) bool {
	if err := c.Send(signalType, data); err != nil {
		c.logger.Warn("actuator signal not sent", "signal_type", signalType, "error", err)
		return false
	}
	c.logger.Debug("actuator signal sent", "signal_type", signalType)
	return true
}

// SendGesture sends the signal for a catalogue gesture.
func (c *Client) SendGesture(name string) (Gesture, error) {
	g, ok := LookupGesture(name)
	if !ok {
		return Gesture{}, fmt.Errorf("%w: %s", ErrUnknownGesture, name)
	}
	return g, c.Send(g.Signal, nil)
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Attempts returns how many connection attempts have been made.
func (c *Client) Attempts() uint64 {
	return c.attempts.Load()
}

// Status returns a snapshot for reporting.
func (c *Client) Status() Status {
	state := c.State()
	s := Status{
		State:      state.String(),
		Connected:  state == StateConnected,
		URL:        c.cfg.URL,
		Host:       c.cfg.Host,
		Port:       c.cfg.Port,
		Greeted:    state == StateConnected && c.greeted.Load(),
		Attempts:   c.attempts.Load(),
		Connects:   c.connects.Load(),
		SignalsTx:  c.signalsTx.Load(),
		MessagesRx: c.messagesRx.Load(),
	}
	if msg := c.lastMsg.Load(); msg != nil {
		cpy := *msg
		s.LastMessage = &cpy
	}
	if ns := c.lastMsgAt.Load(); ns > 0 {
		at := time.Unix(0, ns).UTC()
		s.LastMessageAt = &at
	}
	return s
}

// Disconnect closes the connection and stops reconnecting. It waits a
// bounded time for the loop to exit. Safe to call multiple times.
func (c *Client) Disconnect() error {
	c.done.Close()

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn != nil {
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // Best-effort close frame
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"), deadline)
		conn.Close() //nolint:errcheck // Shutting down
	}

	if !c.started.Load() {
		c.setState(StateDisconnected)
		return nil
	}

	select {
	case <-c.stopped:
	case <-time.After(defaultStopTimeout):
		c.logger.Warn("actuator loop did not stop in time", "timeout", defaultStopTimeout.String())
	}
	return nil
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}
