package cobot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout      = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxFrameSize      = 64 * 1024
)

// Reply statuses carried in a response result.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type inbound struct {
	SignalType string         `json:"signalType"`
	Timestamp  any            `json:"timestamp"`
	Data       map[string]any `json:"data"`
}

// Result describes the outcome of one signal.
type Result struct {
	Status  string `json:"status"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

// Reply is a message sent back to the signal sender.
type Reply struct {
	Type       string  `json:"type"`
	Message    string  `json:"message,omitempty"`
	Robot      string  `json:"robot,omitempty"`
	SignalType string  `json:"signalType,omitempty"`
	Result     *Result `json:"result,omitempty"`
	Timestamp  any     `json:"timestamp,omitempty"`
}

// Server accepts actuator connections over WebSocket and plays a gesture
// for each signal received.
//
// Each connection is handled sequentially: the next frame is read only
// after the reply for the previous one has been written.
type Server struct {
	name     string
	runner   *Runner
	logger   Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewServer creates a server announcing itself as name.
func NewServer(name string, runner *Runner) *Server {
	return &Server{
		name:   name,
		runner: runner,
		logger: noopLogger{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// ServeHTTP upgrades the request and serves signals until the peer leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxFrameSize)
	s.track(conn)
	defer s.untrack(conn)

	s.logger.Info("client connected", "remote", r.RemoteAddr)
	defer s.logger.Info("client disconnected", "remote", r.RemoteAddr)

	if err := s.write(conn, Reply{
		Type:    "connected",
		Message: s.name + " ready for commands",
		Robot:   s.name,
	}); err != nil {
		return
	}

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read ended", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if err := s.write(conn, s.Handle(ctx, data)); err != nil {
			return
		}
	}
}

// Handle decodes one signal frame, plays the matching gesture and returns
// the reply to send.
func (s *Server) Handle(ctx context.Context, data []byte) Reply {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Reply{Type: "error", Message: "Invalid JSON"}
	}

	action, err := ActionFor(in.SignalType, in.Data)
	if err != nil {
		s.logger.Warn("unknown signal", "signal_type", in.SignalType)
		return Reply{Type: "error", Message: fmt.Sprintf("Unknown signal type: %s", in.SignalType)}
	}

	reply := Reply{Type: "response", SignalType: in.SignalType, Timestamp: in.Timestamp}

	g, ok := LookupGesture(action)
	if !ok {
		reply.Result = &Result{Status: StatusError, Action: action, Message: fmt.Sprintf("Unknown action: %s", action)}
		return reply
	}

	if err := s.runner.Run(ctx, g); err != nil {
		s.logger.Error("gesture failed", "gesture", g.Name, "error", err)
		reply.Result = &Result{Status: StatusError, Action: action, Message: err.Error()}
		return reply
	}
	reply.Result = &Result{Status: StatusSuccess, Action: action, Message: g.Message}
	return reply
}

func (s *Server) write(conn *websocket.Conn, reply Reply) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // best-effort deadline
	if err := conn.WriteJSON(reply); err != nil {
		s.logger.Debug("write failed", "error", err)
		return err
	}
	return nil
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close() //nolint:errcheck // connection is being discarded
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close() //nolint:errcheck // shutting down
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then stops the
// runner and closes every client connection.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("cobot server listening", "address", ln.Addr().String(), "robot", s.name)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeAll()
	if stopErr := s.runner.Close(); stopErr != nil {
		s.logger.Warn("gesture still running at shutdown", "error", stopErr)
	}
	return err
}
