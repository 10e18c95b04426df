// mqtt.go: Package mqtt publishes freshness batch results to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/freshness-go/internal/conf"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Topic             string // topic batch results are published on
	QoS               byte
	Retain            bool
	ReconnectCooldown time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		QoS:               1,
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings builds a Config from the mqtt section of settings.
// An empty client ID is replaced with a random one.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.MQTT.ClientID
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.Topic = settings.MQTT.Topic
	cfg.QoS = settings.MQTT.QoS
	cfg.Retain = settings.MQTT.Retain

	if cfg.ClientID == "" {
		cfg.ClientID = "freshness-" + uuid.NewString()[:8]
	}
	return cfg
}
