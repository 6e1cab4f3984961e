package robot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteRepository implements Repository on the robots table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns every robot ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Config, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, protocol, enabled, url, headers,
			mqtt_broker, mqtt_port, mqtt_topic, mqtt_username, mqtt_password,
			serial_port, serial_baudrate, commands
		FROM robots
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying robots: %w", err)
	}
	defer rows.Close()

	var robots []Config
	for rows.Next() {
		c, err := scanRobot(rows)
		if err != nil {
			return nil, err
		}
		robots = append(robots, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating robots: %w", err)
	}
	return robots, nil
}

// Save inserts or replaces a robot row.
func (r *SQLiteRepository) Save(ctx context.Context, c *Config) error {
	headers, err := marshalJSONColumn(c.Headers)
	if err != nil {
		return fmt.Errorf("encoding headers: %w", err)
	}
	commands, err := marshalJSONColumn(c.Commands)
	if err != nil {
		return fmt.Errorf("encoding commands: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO robots (
			id, name, protocol, enabled, url, headers,
			mqtt_broker, mqtt_port, mqtt_topic, mqtt_username, mqtt_password,
			serial_port, serial_baudrate, commands, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			protocol = excluded.protocol,
			enabled = excluded.enabled,
			url = excluded.url,
			headers = excluded.headers,
			mqtt_broker = excluded.mqtt_broker,
			mqtt_port = excluded.mqtt_port,
			mqtt_topic = excluded.mqtt_topic,
			mqtt_username = excluded.mqtt_username,
			mqtt_password = excluded.mqtt_password,
			serial_port = excluded.serial_port,
			serial_baudrate = excluded.serial_baudrate,
			commands = excluded.commands,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, string(c.Protocol), c.Enabled, c.URL, headers,
		c.MQTTBroker, c.MQTTPort, c.MQTTTopic, c.MQTTUsername, c.MQTTPassword,
		c.SerialPort, c.SerialBaudRate, commands, now, now,
	)
	if err != nil {
		return fmt.Errorf("saving robot %s: %w", c.ID, err)
	}
	return nil
}

// Delete removes a robot row.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM robots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting robot %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting robot %s: %w", id, err)
	}
	if n == 0 {
		return ErrRobotNotFound
	}
	return nil
}

func scanRobot(rows *sql.Rows) (*Config, error) {
	var (
		c        Config
		protocol string
		headers  string
		commands string
	)
	err := rows.Scan(
		&c.ID, &c.Name, &protocol, &c.Enabled, &c.URL, &headers,
		&c.MQTTBroker, &c.MQTTPort, &c.MQTTTopic, &c.MQTTUsername, &c.MQTTPassword,
		&c.SerialPort, &c.SerialBaudRate, &commands,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning robot row: %w", err)
	}
	c.Protocol = Protocol(protocol)

	if err := unmarshalJSONColumn(headers, &c.Headers); err != nil {
		return nil, fmt.Errorf("decoding headers for %s: %w", c.ID, err)
	}
	if err := unmarshalJSONColumn(commands, &c.Commands); err != nil {
		return nil, fmt.Errorf("decoding commands for %s: %w", c.ID, err)
	}
	return &c, nil
}

func marshalJSONColumn(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return "{}", nil
	}
	return string(data), nil
}

func unmarshalJSONColumn(s string, v any) error {
	if s == "" || s == "{}" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}
