package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
api:
  host: "127.0.0.1"
  port: 9000
robots:
  storage: "sqlite"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    client_id: "test-client"
  qos: 1
actuator:
  host: "cobot.local"
  port: 9001
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Robots.Storage != "sqlite" {
		t.Errorf("Robots.Storage = %q, want %q", cfg.Robots.Storage, "sqlite")
	}
	if cfg.MQTT.Broker.ClientID != "test-client" {
		t.Errorf("MQTT.Broker.ClientID = %q, want %q", cfg.MQTT.Broker.ClientID, "test-client")
	}
	if got, want := cfg.ActuatorURL(), "ws://cobot.local:9001"; got != want {
		t.Errorf("ActuatorURL() = %q, want %q", got, want)
	}

	// Unset sections keep their defaults.
	if cfg.Actuator.RetryInterval != 5 {
		t.Errorf("Actuator.RetryInterval = %d, want 5", cfg.Actuator.RetryInterval)
	}
	if cfg.Presence.Signals.Entered != "go_to_celebrate_pose" {
		t.Errorf("Presence.Signals.Entered = %q, want go_to_celebrate_pose", cfg.Presence.Signals.Entered)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
robots:
  storage: "postgres"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			modify:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "invalid api port low",
			modify:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid api port high",
			modify:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "unknown storage",
			modify:  func(c *Config) { c.Robots.Storage = "redis" },
			wantErr: true,
		},
		{
			name:    "file storage without path",
			modify:  func(c *Config) { c.Robots.File = "" },
			wantErr: true,
		},
		{
			name: "sqlite storage without database path",
			modify: func(c *Config) {
				c.Robots.Storage = "sqlite"
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "zero attempt timeout",
			modify:  func(c *Config) { c.Dispatch.AttemptTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "missing client id",
			modify:  func(c *Config) { c.MQTT.Broker.ClientID = "" },
			wantErr: true,
		},
		{
			name: "input enabled without topics",
			modify: func(c *Config) {
				c.MQTT.Input.Enabled = true
				c.MQTT.Input.SpokenTopic = ""
			},
			wantErr: true,
		},
		{
			name:    "empty presence queue",
			modify:  func(c *Config) { c.Presence.QueueSize = 0 },
			wantErr: true,
		},
		{
			name:    "actuator missing host",
			modify:  func(c *Config) { c.Actuator.Host = "" },
			wantErr: true,
		},
		{
			name: "disabled actuator skips checks",
			modify: func(c *Config) {
				c.Actuator.Enabled = false
				c.Actuator.Host = ""
				c.Actuator.RetryInterval = 0
			},
			wantErr: false,
		},
		{
			name:    "invalid cobot port",
			modify:  func(c *Config) { c.Cobot.Port = 0 },
			wantErr: true,
		},
		{
			name:    "negative step delay",
			modify:  func(c *Config) { c.Cobot.StepDelay = -1 },
			wantErr: true,
		},
		{
			name: "influx enabled without url",
			modify: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Dispatch: DispatchConfig{AttemptTimeout: 5},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetAttemptTimeout().Seconds(); got != 5 {
		t.Errorf("GetAttemptTimeout() = %v, want 5", got)
	}
}

func TestConfig_ActuatorURL(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "no path", path: "", want: "ws://localhost:8765"},
		{name: "rooted path", path: "/ws", want: "ws://localhost:8765/ws"},
		{name: "bare path", path: "ws", want: "ws://localhost:8765/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Actuator.Path = tt.path
			if got := cfg.ActuatorURL(); got != tt.want {
				t.Errorf("ActuatorURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("NEBULA_API_HOST", "192.168.1.1")
	t.Setenv("NEBULA_API_PORT", "9090")
	t.Setenv("NEBULA_ROBOTS_FILE", "/custom/robots.json")
	t.Setenv("NEBULA_DATABASE_PATH", "/custom/path.db")
	t.Setenv("NEBULA_MQTT_HOST", "mqtt.example.com")
	t.Setenv("NEBULA_MQTT_USERNAME", "testuser")
	t.Setenv("NEBULA_MQTT_PASSWORD", "testpass")
	t.Setenv("NEBULA_ACTUATOR_HOST", "10.0.0.7")
	t.Setenv("NEBULA_ACTUATOR_PORT", "not-a-number")
	t.Setenv("NEBULA_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("NEBULA_COBOT_NAME", "myCobot 320 Pi")
	t.Setenv("NEBULA_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Robots.File != "/custom/robots.json" {
		t.Errorf("Robots.File = %q, want %q", cfg.Robots.File, "/custom/robots.json")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.Actuator.Host != "10.0.0.7" {
		t.Errorf("Actuator.Host = %q, want %q", cfg.Actuator.Host, "10.0.0.7")
	}
	if cfg.Actuator.Port != 8765 {
		t.Errorf("Actuator.Port = %d, want unparseable override ignored (8765)", cfg.Actuator.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Cobot.Name != "myCobot 320 Pi" {
		t.Errorf("Cobot.Name = %q, want %q", cfg.Cobot.Name, "myCobot 320 Pi")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Broker.ClientID != "nebula-talks" {
		t.Errorf("defaultConfig MQTT.Broker.ClientID = %q, want nebula-talks", cfg.MQTT.Broker.ClientID)
	}
	if cfg.MQTT.QoS != 0 || cfg.MQTT.Retained {
		t.Errorf("defaultConfig MQTT QoS/Retained = %d/%v, want 0/false", cfg.MQTT.QoS, cfg.MQTT.Retained)
	}
	if cfg.Dispatch.AttemptTimeout != 5 {
		t.Errorf("defaultConfig Dispatch.AttemptTimeout = %d, want 5", cfg.Dispatch.AttemptTimeout)
	}
	if cfg.Actuator.Port != 8765 {
		t.Errorf("defaultConfig Actuator.Port = %d, want 8765", cfg.Actuator.Port)
	}
}

func TestDefaults(t *testing.T) {
	t.Setenv("NEBULA_ACTUATOR_HOST", "cobot")

	cfg, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults() error = %v", err)
	}
	if cfg.Actuator.Host != "cobot" {
		t.Errorf("Actuator.Host = %q, want cobot", cfg.Actuator.Host)
	}
}
