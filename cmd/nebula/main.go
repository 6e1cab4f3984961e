// Nebula - presence-driven robot signalling service
//
// This is the main entry point for the Nebula service. It watches a person
// detector (over HTTP or MQTT), turns presence transitions into signals for
// the primary actuator, and fans signals out to a fleet of robots reachable
// over HTTP, WebSocket, MQTT or serial.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/nebula-core/internal/actuator"
	"github.com/nerrad567/nebula-core/internal/api"
	"github.com/nerrad567/nebula-core/internal/dispatch"
	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
	"github.com/nerrad567/nebula-core/internal/infrastructure/database"
	"github.com/nerrad567/nebula-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/nebula-core/internal/infrastructure/logging"
	"github.com/nerrad567/nebula-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/nebula-core/internal/presence"
	"github.com/nerrad567/nebula-core/internal/robot"
	"github.com/nerrad567/nebula-core/internal/transport"
	"github.com/nerrad567/nebula-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", "", "path to config.yaml (overrides NEBULA_CONFIG)")
	flag.Parse()

	// Cancel on Ctrl+C or SIGTERM so deferred cleanup runs.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Nebula",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, source, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "source", source)

	log = logging.New(cfg.Logging, cfg.Service.Name, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Robot registry
	repo, db, err := openRobotRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	registry := robot.NewRegistry(repo)
	registry.SetLogger(log.Component("robots"))
	if loadErr := registry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading robot registry: %w", loadErr)
	}
	log.Info("robot registry initialised", "robots", registry.Count(), "storage", cfg.Robots.Storage)

	// Transport connectors and dispatcher
	connectors := transport.NewDefaultSet(cfg.MQTT, log.Component("transport"))
	defer func() {
		log.Info("closing robot connections")
		if closeErr := connectors.Close(); closeErr != nil {
			log.Warn("error closing robot connections", "error", closeErr)
		}
	}()

	dispatcher := dispatch.New(registry, connectors, cfg.GetAttemptTimeout())
	dispatcher.SetLogger(log.Component("dispatch"))

	// InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetLogger(log.Component("telemetry"))
		dispatcher.SetRecorder(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Primary actuator (optional)
	var actuatorClient *actuator.Client
	if cfg.Actuator.Enabled {
		actuatorClient = startActuator(ctx, cfg, log.Component("actuator"))
		defer func() {
			log.Info("disconnecting from actuator")
			if stopErr := actuatorClient.Disconnect(); stopErr != nil {
				log.Warn("actuator loop did not stop cleanly", "error", stopErr)
			}
		}()
	} else {
		log.Info("actuator disabled")
	}

	// Presence session
	var sessionActuator presence.Actuator
	if actuatorClient != nil {
		sessionActuator = actuatorClient
	}
	session := presence.NewSession(cfg.Presence, sessionActuator, dispatcher)
	session.SetLogger(log.Component("presence"))
	if influxClient != nil {
		session.SetRecorder(influxClient)
	}

	sessionCtx, stopSession := context.WithCancel(ctx)
	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		if runErr := session.Run(sessionCtx); runErr != nil {
			log.Error("presence session stopped", "error", runErr)
		}
	}()
	defer func() {
		stopSession()
		<-sessionDone
	}()

	// MQTT presence input (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Input.Enabled {
		var input *presence.Input
		mqttClient, input, err = startPresenceInput(cfg, session, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("stopping MQTT presence input")
			if stopErr := input.Stop(); stopErr != nil {
				log.Warn("error unsubscribing presence input", "error", stopErr)
			}
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	// HTTP API
	deps := api.Deps{
		Config:     cfg.API,
		Logger:     log.Component("api"),
		Registry:   registry,
		Dispatcher: dispatcher,
		Presence:   session,
		MQTT:       mqttClient,
		DB:         db,
		Version:    version,
	}
	if actuatorClient != nil {
		deps.Actuator = actuatorClient
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
	}
	apiServer, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal", "api", apiServer.Addr())
	<-ctx.Done()

	// Deferred cleanup runs in reverse order: API, MQTT input, presence
	// session, actuator, InfluxDB, robot connections, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// loadConfig resolves the config file: the -config flag, then NEBULA_CONFIG,
// then the default path. Without any file the built-in defaults are used.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv("NEBULA_CONFIG")
	}
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	if _, err := os.Stat(defaultConfigPath); err == nil {
		cfg, err := config.Load(defaultConfigPath)
		return cfg, defaultConfigPath, err
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("checking %s: %w", defaultConfigPath, err)
	}

	cfg, err := config.Defaults()
	return cfg, "defaults", err
}

// openRobotRepository returns the configured robot store. The database is
// only opened, and returned, for sqlite storage.
func openRobotRepository(ctx context.Context, cfg *config.Config, log *logging.Logger) (robot.Repository, *database.DB, error) {
	if cfg.Robots.Storage != "sqlite" {
		log.Info("using robots file", "path", cfg.Robots.File)
		return robot.NewFileRepository(cfg.Robots.File), nil, nil
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")

	return robot.NewSQLiteRepository(db.DB), db, nil
}

// startActuator starts the reconnecting actuator client. It never fails:
// an unreachable actuator is retried in the background.
func startActuator(ctx context.Context, cfg *config.Config, log *logging.Logger) *actuator.Client {
	client := actuator.NewClient(actuator.NewConfig(cfg))
	client.SetLogger(log)
	client.SetOnMessage(func(msg actuator.Message) {
		if msg.Type == actuator.MessageError {
			log.Warn("actuator reported error", "message", msg.Message)
			return
		}
		log.Debug("actuator message", "type", msg.Type, "signal_type", msg.SignalType)
	})
	client.Start(ctx)
	log.Info("actuator client started", "url", cfg.ActuatorURL())
	return client
}

// startPresenceInput connects a dedicated MQTT client and subscribes the
// presence topics. Its client ID is suffixed so it does not collide with
// the robot publishing session on the same broker.
func startPresenceInput(cfg *config.Config, session *presence.Session, log *logging.Logger) (*mqtt.Client, *presence.Input, error) {
	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID += "-input"

	client, err := mqtt.Connect(mqttCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	input := presence.NewInput(cfg.MQTT.Input, byte(cfg.MQTT.QoS), client, session) //nolint:gosec // QoS validated to 0-2
	input.SetLogger(log.Component("presence-input"))
	if err := input.Start(); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("subscribing presence input: %w", err)
	}
	log.Info("MQTT presence input started",
		"broker", client.Broker(),
		"detection_topic", cfg.MQTT.Input.DetectionTopic,
		"spoken_topic", cfg.MQTT.Input.SpokenTopic,
	)
	return client, input, nil
}

// healthCheck verifies the optional infrastructure connections that are in use.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
