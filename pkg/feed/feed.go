package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Feed errors.
var (
	ErrNoRoutes       = errors.New("no routes configured")
	ErrEmptyTopic     = errors.New("route topic is empty")
	ErrInvalidQoS     = errors.New("qos must be 0, 1 or 2")
	ErrNotStarted     = errors.New("feed not started")
	ErrAlreadyRunning = errors.New("feed already started")
)

// Publisher receives channel values. producer.Hub satisfies it.
type Publisher interface {
	Publish(channel string, data json.RawMessage)
}

// Route maps an MQTT topic filter to a channel.
type Route struct {
	// Topic is an MQTT topic filter; wildcards are allowed.
	Topic string `yaml:"topic"`

	// Channel receives the messages. Empty uses each message's topic
	// with Prefix prepended.
	Channel string `yaml:"channel"`
	Prefix  string `yaml:"prefix"`

	QoS byte `yaml:"qos"`
}

// channelFor returns the channel a message on topic is published to.
func (r Route) channelFor(topic string) string {
	if r.Channel != "" {
		return r.Channel
	}
	return r.Prefix + topic
}

// Validate checks a route.
func (r Route) Validate() error {
	if r.Topic == "" {
		return ErrEmptyTopic
	}
	if r.QoS > 2 {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, r.QoS)
	}
	return nil
}

// Stats counts feed activity.
type Stats struct {
	Received  uint64
	Published uint64
	Wrapped   uint64
}

// Feed republishes MQTT messages onto channels.
type Feed struct {
	broker Broker
	pub    Publisher
	routes []Route
	logger *slog.Logger

	mu      sync.Mutex
	started bool

	received, published, wrapped atomic.Uint64
}

// New creates a feed. Start subscribes the routes.
func New(broker Broker, pub Publisher, routes []Route, logger *slog.Logger) (*Feed, error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}
	for i, r := range routes {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Feed{
		broker: broker,
		pub:    pub,
		routes: append([]Route(nil), routes...),
		logger: logger,
	}, nil
}

// Start subscribes every route. On failure the routes already
// subscribed are unsubscribed again.
func (f *Feed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return ErrAlreadyRunning
	}

	for i, r := range f.routes {
		if err := f.broker.Subscribe(r.Topic, r.QoS, f.handler(r)); err != nil {
			if i > 0 {
				_ = f.broker.Unsubscribe(topics(f.routes[:i])...)
			}
			return fmt.Errorf("route %q: %w", r.Topic, err)
		}
		f.logger.Info("mqtt route subscribed", "topic", r.Topic, "channel", r.channelFor("<topic>"))
	}
	f.started = true
	return nil
}

// Stop unsubscribes every route.
func (f *Feed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return ErrNotStarted
	}
	f.started = false
	return f.broker.Unsubscribe(topics(f.routes)...)
}

// Stats returns activity counters.
func (f *Feed) Stats() Stats {
	return Stats{
		Received:  f.received.Load(),
		Published: f.published.Load(),
		Wrapped:   f.wrapped.Load(),
	}
}

func (f *Feed) handler(r Route) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		f.received.Add(1)
		channel := r.channelFor(msg.Topic())
		data, wrapped := payloadJSON(msg.Payload())
		if wrapped {
			f.wrapped.Add(1)
		}
		f.pub.Publish(channel, data)
		f.published.Add(1)
		f.logger.Debug("mqtt message published", "topic", msg.Topic(), "channel", channel, "size", len(data))
	}
}

// payloadJSON returns p when it is valid JSON and p as a JSON string
// otherwise.
func payloadJSON(p []byte) (json.RawMessage, bool) {
	if len(p) > 0 && json.Valid(p) {
		return append(json.RawMessage(nil), p...), false
	}
	quoted, _ := json.Marshal(string(p))
	return quoted, true
}

func topics(routes []Route) []string {
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = r.Topic
	}
	return out
}
