package robot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/nebula-core/internal/infrastructure/database"
	"github.com/nerrad567/nebula-core/migrations"
)

// repositoryFactories lets the same contract tests run on every implementation.
func repositoryFactories(t *testing.T) map[string]func() Repository {
	t.Helper()

	return map[string]func() Repository{
		"file": func() Repository {
			return NewFileRepository(filepath.Join(t.TempDir(), "data", "robots.json"))
		},
		"sqlite": func() Repository {
			db, err := database.Open(database.Config{
				Path:        filepath.Join(t.TempDir(), "nebula.db"),
				WALMode:     true,
				BusyTimeout: 5,
			})
			if err != nil {
				t.Fatalf("database.Open() error = %v", err)
			}
			t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
			if err := db.Migrate(context.Background(), migrations.FS); err != nil {
				t.Fatalf("Migrate() error = %v", err)
			}
			return NewSQLiteRepository(db.DB)
		},
	}
}

func TestRepository_Contract(t *testing.T) {
	for name, factory := range repositoryFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory()

			robots, err := repo.List(ctx)
			if err != nil {
				t.Fatalf("List() on empty store error = %v", err)
			}
			if len(robots) != 0 {
				t.Fatalf("List() = %d robots, want 0", len(robots))
			}

			mqttRobot := validRobot(ProtocolMQTT)
			mqttRobot.MQTTUsername = "user"
			mqttRobot.MQTTPassword = "pass"
			mqttRobot.Commands = map[string]Command{"wave_hand": {"speed": "fast"}}

			httpRobot := validRobot(ProtocolHTTP)
			httpRobot.ID = "web-1"
			httpRobot.Headers = map[string]string{"Authorization": "Bearer x"}
			httpRobot.Enabled = false

			for _, c := range []*Config{mqttRobot, httpRobot} {
				if err := repo.Save(ctx, c); err != nil {
					t.Fatalf("Save(%s) error = %v", c.ID, err)
				}
			}

			robots, err = repo.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(robots) != 2 {
				t.Fatalf("List() = %d robots, want 2", len(robots))
			}
			sortByID(robots)

			got := robots[0]
			if got.ID != "arm-1" || got.Protocol != ProtocolMQTT || got.MQTTTopic != "robots/arm-1/cmd" {
				t.Errorf("arm-1 = %+v", got)
			}
			if got.MQTTUsername != "user" || got.MQTTPassword != "pass" {
				t.Errorf("arm-1 credentials = %q/%q", got.MQTTUsername, got.MQTTPassword)
			}
			if cmd, ok := got.CommandFor("wave_hand"); !ok || cmd["speed"] != "fast" {
				t.Errorf("arm-1 commands = %v", got.Commands)
			}
			if robots[1].Enabled {
				t.Error("web-1 should be stored disabled")
			}
			if robots[1].Headers["Authorization"] != "Bearer x" {
				t.Errorf("web-1 headers = %v", robots[1].Headers)
			}

			// Save with an existing ID replaces the record.
			renamed := validRobot(ProtocolMQTT)
			renamed.Name = "Renamed arm"
			if err := repo.Save(ctx, renamed); err != nil {
				t.Fatalf("Save(replace) error = %v", err)
			}
			robots, _ = repo.List(ctx)
			if len(robots) != 2 {
				t.Fatalf("List() after replace = %d robots, want 2", len(robots))
			}
			sortByID(robots)
			if robots[0].Name != "Renamed arm" {
				t.Errorf("Name = %q, want Renamed arm", robots[0].Name)
			}

			if err := repo.Delete(ctx, "web-1"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := repo.Delete(ctx, "web-1"); !errors.Is(err, ErrRobotNotFound) {
				t.Errorf("Delete() twice error = %v, want ErrRobotNotFound", err)
			}
			robots, _ = repo.List(ctx)
			if len(robots) != 1 {
				t.Errorf("List() after delete = %d robots, want 1", len(robots))
			}
		})
	}
}

func TestFileRepository_ReadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robots.json")
	doc := `{
  "robots": [
    {
      "id": "cobot",
      "name": "Cobot",
      "protocol": "websocket",
      "url": "ws://192.168.1.20:8765",
      "headers": null,
      "mqtt_broker": null,
      "mqtt_port": 1883,
      "mqtt_topic": null,
      "mqtt_username": null,
      "mqtt_password": null,
      "serial_port": null,
      "serial_baudrate": 9600,
      "commands": null
    }
  ]
}`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	robots, err := NewFileRepository(path).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(robots) != 1 {
		t.Fatalf("List() = %d robots, want 1", len(robots))
	}
	if !robots[0].Enabled {
		t.Error("omitted enabled should default to true")
	}
	if err := Validate(&robots[0]); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestFileRepository_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robots.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	repo := NewFileRepository(path)
	if _, err := repo.List(context.Background()); err == nil || !strings.Contains(err.Error(), "parsing") {
		t.Errorf("List() error = %v, want parse error", err)
	}
	if err := repo.Save(context.Background(), validRobot(ProtocolHTTP)); err == nil {
		t.Error("Save() should not overwrite an unparseable file")
	}
	if repo.Path() != path {
		t.Errorf("Path() = %q, want %q", repo.Path(), path)
	}
}
