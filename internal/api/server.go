package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/nebula-core/internal/actuator"
	"github.com/nerrad567/nebula-core/internal/dispatch"
	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
	"github.com/nerrad567/nebula-core/internal/infrastructure/database"
	"github.com/nerrad567/nebula-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/nebula-core/internal/infrastructure/logging"
	"github.com/nerrad567/nebula-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/nebula-core/internal/presence"
	"github.com/nerrad567/nebula-core/internal/robot"
	"github.com/nerrad567/nebula-core/internal/transport"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Actuator is the part of the primary actuator client the API drives.
type Actuator interface {
	Status() actuator.Status
	SendGesture(name string) (actuator.Gesture, error)
	Send(signalType string, data map[string]any) error
}

// Telemetry reports telemetry writer counters.
type Telemetry interface {
	Stats() influxdb.Stats
}

// PortLister enumerates serial devices on the host.
type PortLister func() ([]transport.PortInfo, error)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Registry   *robot.Registry
	Dispatcher *dispatch.Dispatcher
	Presence   *presence.Session // optional
	Actuator   Actuator          // optional
	MQTT       *mqtt.Client      // optional, presence input bridge
	DB         *database.DB      // optional, only with sqlite storage
	Telemetry  Telemetry         // optional
	ListPorts  PortLister        // defaults to transport.ListPorts
	Version    string
}

// Server is the HTTP API server for Nebula.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	registry   *robot.Registry
	dispatcher *dispatch.Dispatcher
	presence   *presence.Session
	actuator   Actuator
	mqtt       *mqtt.Client
	db         *database.DB
	telemetry  Telemetry
	listPorts  PortLister
	version    string
	startTime  time.Time
	server     *http.Server
	addr       string
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("robot registry is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	listPorts := deps.ListPorts
	if listPorts == nil {
		listPorts = transport.ListPorts
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		presence:   deps.Presence,
		actuator:   deps.Actuator,
		telemetry:  deps.Telemetry,
		mqtt:       deps.MQTT,
		db:         deps.DB,
		listPorts:  listPorts,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine.
// Binding errors (port in use) are returned directly.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.addr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address once started.
func (s *Server) Addr() string {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
