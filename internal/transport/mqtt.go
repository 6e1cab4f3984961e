package transport

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
	"github.com/nerrad567/nebula-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/nebula-core/internal/robot"
)

// Publisher is the part of an MQTT session the connector needs.
// *mqtt.Client satisfies it.
type Publisher interface {
	PublishAsync(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	Close() error
}

// DialFunc opens an MQTT session for the given broker settings.
type DialFunc func(cfg config.MQTTConfig) (Publisher, error)

func dialMQTT(cfg config.MQTTConfig) (Publisher, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// MQTTConnector publishes to every MQTT robot over one shared session.
//
// The session is opened on the first MQTT delivery using that robot's
// broker address and credentials, with QoS, retain, keep-alive and TLS
// settings from the base config. Concurrent first deliveries share a single
// connect. Publishing is fire-and-forget: the broker's acknowledgement is
// not awaited.
type MQTTConnector struct {
	base config.MQTTConfig
	dial DialFunc

	connect singleflight.Group

	client Publisher
	broker string
	mu     sync.Mutex

	logger Logger
}

// NewMQTTConnector creates an MQTT connector using base for the session
// settings robots do not carry themselves.
func NewMQTTConnector(base config.MQTTConfig) *MQTTConnector {
	return &MQTTConnector{
		base:   base,
		dial:   dialMQTT,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the connector.
func (c *MQTTConnector) SetLogger(logger Logger) {
	c.logger = logger
}

// Protocol implements Connector.
func (c *MQTTConnector) Protocol() robot.Protocol {
	return robot.ProtocolMQTT
}

// Deliver implements Connector.
func (c *MQTTConnector) Deliver(ctx context.Context, r *robot.Config, payload map[string]any) bool {
	body, err := encode(payload)
	if err != nil {
		c.logger.Warn("mqtt delivery failed", "robot_id", r.ID, "error", err)
		return false
	}

	client, err := c.session(ctx, r)
	if err != nil {
		c.logger.Warn("mqtt connect failed", "robot_id", r.ID, "broker", brokerAddr(r), "error", err)
		return false
	}

	if err := client.PublishAsync(r.MQTTTopic, body, byte(c.base.QoS), c.base.Retained); err != nil { //nolint:gosec // QoS validated to 0-2
		c.logger.Warn("mqtt publish failed", "robot_id", r.ID, "topic", r.MQTTTopic, "error", err)
		c.drop(client)
		return false
	}
	return true
}

// session returns the shared client, connecting it on first use.
func (c *MQTTConnector) session(ctx context.Context, r *robot.Config) (Publisher, error) {
	c.mu.Lock()
	client, broker := c.client, c.broker
	c.mu.Unlock()

	if client != nil {
		if addr := brokerAddr(r); addr != broker {
			c.logger.Debug("mqtt robot uses a different broker than the shared session",
				"robot_id", r.ID, "robot_broker", addr, "session_broker", broker)
		}
		return client, nil
	}

	ch := c.connect.DoChan("session", func() (any, error) {
		c.mu.Lock()
		if c.client != nil {
			existing := c.client
			c.mu.Unlock()
			return existing, nil
		}
		c.mu.Unlock()

		client, err := c.dial(c.sessionConfig(r))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.client = client
		c.broker = brokerAddr(r)
		c.mu.Unlock()

		c.logger.Info("mqtt session connected", "broker", brokerAddr(r))
		return client, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Publisher), nil //nolint:forcetypeassert // Only Publisher values are returned above
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sessionConfig overlays the robot's broker and credentials on the base config.
func (c *MQTTConnector) sessionConfig(r *robot.Config) config.MQTTConfig {
	cfg := c.base
	cfg.Input = config.MQTTInputConfig{}
	cfg.Broker.Host = r.MQTTBroker
	cfg.Broker.Port = r.MQTTPort
	if r.MQTTUsername != "" {
		cfg.Auth = config.MQTTAuthConfig{Username: r.MQTTUsername, Password: r.MQTTPassword}
	}
	return cfg
}

// drop discards client if it is still the shared session.
func (c *MQTTConnector) drop(client Publisher) {
	c.mu.Lock()
	if c.client != client {
		c.mu.Unlock()
		return
	}
	c.client = nil
	c.broker = ""
	c.mu.Unlock()

	if err := client.Close(); err != nil {
		c.logger.Debug("mqtt session close failed", "error", err)
	}
}

// Connected reports whether the shared session is up.
func (c *MQTTConnector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil && c.client.IsConnected()
}

// Invalidate implements Connector. The session is shared by every MQTT
// robot, so it is only dropped on a publish failure, never per robot.
func (c *MQTTConnector) Invalidate(string) {}

// Close implements Connector.
func (c *MQTTConnector) Close() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.broker = ""
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("closing mqtt session: %w", err)
	}
	return nil
}

func brokerAddr(r *robot.Config) string {
	return fmt.Sprintf("%s:%d", r.MQTTBroker, r.MQTTPort)
}
