package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Broker errors.
var (
	ErrConnectTimeout = errors.New("mqtt connect timeout")
	ErrTokenTimeout   = errors.New("mqtt operation timeout")
)

// Broker is the part of an MQTT client a Feed needs.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// BrokerConfig configures the connection to an MQTT broker.
type BrokerConfig struct {
	// URL is the broker address, e.g. tcp://localhost:1883.
	URL      string
	ClientID string
	Username string
	Password string

	ConnectTimeout time.Duration
	// OperationTimeout bounds subscribe and unsubscribe round trips.
	OperationTimeout time.Duration

	Logger *slog.Logger
}

// DefaultBrokerConfig returns a config for a local broker.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		URL:              "tcp://localhost:1883",
		ClientID:         "telemon-feed",
		ConnectTimeout:   5 * time.Second,
		OperationTimeout: 2 * time.Second,
	}
}

// PahoBroker adapts a paho client to Broker.
type PahoBroker struct {
	client  mqtt.Client
	timeout time.Duration
}

var _ Broker = (*PahoBroker)(nil)

// Dial connects to the broker. The client reconnects on its own after a
// lost connection.
func Dial(ctx context.Context, cfg BrokerConfig) (*PahoBroker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.URL, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, reconnecting", "broker", cfg.URL, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(cfg.ConnectTimeout):
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, cfg.URL)
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.URL, err)
	}

	return &PahoBroker{client: client, timeout: cfg.OperationTimeout}, nil
}

// Subscribe implements Broker.
func (b *PahoBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	return b.wait(b.client.Subscribe(topic, qos, handler), "subscribe "+topic)
}

// Unsubscribe implements Broker.
func (b *PahoBroker) Unsubscribe(topics ...string) error {
	return b.wait(b.client.Unsubscribe(topics...), "unsubscribe")
}

// Close disconnects, giving in-flight work quiesce to finish.
func (b *PahoBroker) Close(quiesce time.Duration) {
	b.client.Disconnect(uint(quiesce.Milliseconds()))
}

func (b *PahoBroker) wait(t mqtt.Token, op string) error {
	if !t.WaitTimeout(b.timeout) {
		return fmt.Errorf("%w: %s", ErrTokenTimeout, op)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("mqtt %s: %w", op, err)
	}
	return nil
}
