package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Nebula Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	API      APIConfig      `yaml:"api"`
	Robots   RobotsConfig   `yaml:"robots"`
	Database DatabaseConfig `yaml:"database"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Presence PresenceConfig `yaml:"presence"`
	Actuator ActuatorConfig `yaml:"actuator"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cobot    CobotConfig    `yaml:"cobot"`
}

// ServiceConfig identifies this installation.
type ServiceConfig struct {
	Name string `yaml:"name"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RobotsConfig selects where robot configurations are persisted.
type RobotsConfig struct {
	// Storage is "file" (JSON document) or "sqlite".
	Storage string `yaml:"storage"`
	File    string `yaml:"file"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// DispatchConfig contains signal fan-out settings.
type DispatchConfig struct {
	// AttemptTimeout bounds each per-robot delivery attempt, in seconds.
	AttemptTimeout int `yaml:"attempt_timeout"`
}

// MQTTConfig contains MQTT client settings.
//
// The broker section is a fallback: robots carry their own broker address
// and credentials, which take precedence when present.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Retained  bool                `yaml:"retained"`
	KeepAlive int                 `yaml:"keep_alive"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Input     MQTTInputConfig     `yaml:"input"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	ConnectTimeout int `yaml:"connect_timeout"`
	MaxDelay       int `yaml:"max_delay"`
}

// MQTTInputConfig enables presence input over MQTT.
type MQTTInputConfig struct {
	Enabled        bool   `yaml:"enabled"`
	DetectionTopic string `yaml:"detection_topic"`
	SpokenTopic    string `yaml:"spoken_topic"`
}

// PresenceConfig maps presence events to the signal types they trigger.
type PresenceConfig struct {
	QueueSize int                   `yaml:"queue_size"`
	Signals   PresenceSignalsConfig `yaml:"signals"`
}

// PresenceSignalsConfig holds the signal type sent for each presence event.
type PresenceSignalsConfig struct {
	Entered              string `yaml:"entered"`
	LeftAfterSpeech      string `yaml:"left_after_speech"`
	LeftAfterSpeechFleet string `yaml:"left_after_speech_fleet"`
	Left                 string `yaml:"left"`
}

// ActuatorConfig contains settings for the primary actuator connection.
type ActuatorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`

	// RetryInterval is the fixed delay between connection attempts, in seconds.
	RetryInterval int `yaml:"retry_interval"`

	PingInterval int `yaml:"ping_interval"`
	PongTimeout  int `yaml:"pong_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CobotConfig contains settings for the actuator-side gesture server.
type CobotConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Name string `yaml:"name"`

	// StepDelay is how long the dry-run executor holds each pose, in milliseconds.
	StepDelay int `yaml:"step_delay"`

	// StopTimeout bounds how long a cancelled gesture may take to wind down, in seconds.
	StopTimeout int `yaml:"stop_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NEBULA_SECTION_KEY
// For example: NEBULA_ACTUATOR_HOST, NEBULA_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Defaults returns the default configuration with environment overrides applied.
// Used when no config file is given.
func Defaults() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "nebula",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
			},
		},
		Robots: RobotsConfig{
			Storage: "file",
			File:    "./data/robots.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/nebula.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Dispatch: DispatchConfig{
			AttemptTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "nebula-talks",
			},
			QoS:       0,
			KeepAlive: 60,
			Reconnect: MQTTReconnectConfig{
				ConnectTimeout: 5,
				MaxDelay:       60,
			},
			Input: MQTTInputConfig{
				DetectionTopic: "nebula/presence/detection",
				SpokenTopic:    "nebula/presence/spoken",
			},
		},
		Presence: PresenceConfig{
			QueueSize: 64,
			Signals: PresenceSignalsConfig{
				Entered:              "go_to_celebrate_pose",
				LeftAfterSpeech:      "wave_hand",
				LeftAfterSpeechFleet: "user_left_after_speaking",
				Left:                 "hold_and_home",
			},
		},
		Actuator: ActuatorConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          8765,
			RetryInterval: 5,
			PingInterval:  20,
			PongTimeout:   20,
			WriteTimeout:  5,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "nebula",
			Bucket:        "nebula",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Cobot: CobotConfig{
			Host:        "0.0.0.0",
			Port:        8765,
			Name:        "myCobot",
			StepDelay:   500,
			StopTimeout: 3,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NEBULA_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("NEBULA_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, ok := envInt("NEBULA_API_PORT"); ok {
		cfg.API.Port = v
	}

	// Robots
	if v := os.Getenv("NEBULA_ROBOTS_FILE"); v != "" {
		cfg.Robots.File = v
	}

	// Database
	if v := os.Getenv("NEBULA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("NEBULA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NEBULA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NEBULA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Actuator
	if v := os.Getenv("NEBULA_ACTUATOR_HOST"); v != "" {
		cfg.Actuator.Host = v
	}
	if v, ok := envInt("NEBULA_ACTUATOR_PORT"); ok {
		cfg.Actuator.Port = v
	}

	// InfluxDB
	if v := os.Getenv("NEBULA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Cobot
	if v, ok := envInt("NEBULA_COBOT_PORT"); ok {
		cfg.Cobot.Port = v
	}
	if v := os.Getenv("NEBULA_COBOT_NAME"); v != "" {
		cfg.Cobot.Name = v
	}

	// Logging
	if v := os.Getenv("NEBULA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// envInt reads an integer environment variable. Unparseable values are ignored.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch c.Robots.Storage {
	case "file":
		if c.Robots.File == "" {
			errs = append(errs, "robots.file is required when robots.storage is file")
		}
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required when robots.storage is sqlite")
		}
	default:
		errs = append(errs, "robots.storage must be file or sqlite")
	}

	if c.Dispatch.AttemptTimeout < 1 {
		errs = append(errs, "dispatch.attempt_timeout must be at least 1 second")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.Input.Enabled && (c.MQTT.Input.DetectionTopic == "" || c.MQTT.Input.SpokenTopic == "") {
		errs = append(errs, "mqtt.input topics are required when mqtt.input is enabled")
	}

	if c.Presence.QueueSize < 1 {
		errs = append(errs, "presence.queue_size must be positive")
	}

	if c.Actuator.Enabled {
		if c.Actuator.Host == "" {
			errs = append(errs, "actuator.host is required")
		}
		if c.Actuator.Port < 1 || c.Actuator.Port > 65535 {
			errs = append(errs, "actuator.port must be between 1 and 65535")
		}
		if c.Actuator.RetryInterval < 1 {
			errs = append(errs, "actuator.retry_interval must be at least 1 second")
		}
	}

	if c.Cobot.Port < 1 || c.Cobot.Port > 65535 {
		errs = append(errs, "cobot.port must be between 1 and 65535")
	}
	if c.Cobot.StepDelay < 0 {
		errs = append(errs, "cobot.step_delay must not be negative")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetAttemptTimeout returns the per-robot delivery timeout as a Duration.
func (c *Config) GetAttemptTimeout() time.Duration {
	return time.Duration(c.Dispatch.AttemptTimeout) * time.Second
}

// ActuatorURL returns the WebSocket URL of the primary actuator.
func (c *Config) ActuatorURL() string {
	path := c.Actuator.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("ws://%s:%d%s", c.Actuator.Host, c.Actuator.Port, path)
}
