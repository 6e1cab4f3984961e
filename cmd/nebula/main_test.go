package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, dir, storage string) string {
	t.Helper()
	content := fmt.Sprintf(`
api:
  host: "127.0.0.1"
  port: %d
robots:
  storage: %q
  file: %q
database:
  path: %q
actuator:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
  format: text
`, freePort(t), storage, filepath.Join(dir, "robots.json"), filepath.Join(dir, "nebula.db"))

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_StartsAndStops verifies a full start and clean shutdown for
// both robot stores.
func TestRun_StartsAndStops(t *testing.T) {
	for _, storage := range []string{"file", "sqlite"} {
		t.Run(storage, func(t *testing.T) {
			dir := t.TempDir()
			robots := `{"robots":[{"id":"arm-1","name":"Arm","protocol":"http","url":"http://127.0.0.1:1/signal"}]}`
			if err := os.WriteFile(filepath.Join(dir, "robots.json"), []byte(robots), 0600); err != nil {
				t.Fatal(err)
			}
			path := writeConfig(t, dir, storage)

			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()

			if err := run(ctx, path); err != nil {
				t.Fatalf("run() error = %v", err)
			}

			if storage == "sqlite" {
				if _, err := os.Stat(filepath.Join(dir, "nebula.db")); err != nil {
					t.Errorf("database file not created: %v", err)
				}
			}
		})
	}
}

// TestRun_CorruptRobotsFile verifies startup fails when the robots file
// cannot be parsed.
func TestRun_CorruptRobotsFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "robots.json"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, "file")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, path); err == nil {
		t.Fatal("run() should fail with a corrupt robots file")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	flagPath := writeConfig(t, dir, "file")

	t.Run("flag path wins", func(t *testing.T) {
		t.Setenv("NEBULA_CONFIG", "/nonexistent/config.yaml")
		_, source, err := loadConfig(flagPath)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if source != flagPath {
			t.Errorf("source = %q, want %q", source, flagPath)
		}
	})

	t.Run("env path", func(t *testing.T) {
		t.Setenv("NEBULA_CONFIG", flagPath)
		cfg, source, err := loadConfig("")
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if source != flagPath || cfg.Logging.Level != "error" {
			t.Errorf("source = %q level = %q", source, cfg.Logging.Level)
		}
	})

	t.Run("defaults without any file", func(t *testing.T) {
		t.Setenv("NEBULA_CONFIG", "")
		t.Chdir(t.TempDir())
		cfg, source, err := loadConfig("")
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if source != "defaults" || cfg.API.Port != 8000 {
			t.Errorf("source = %q port = %d, want defaults", source, cfg.API.Port)
		}
	})
}
