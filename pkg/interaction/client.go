package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/worthb0123/go-shared-fork/pkg/log"
	"github.com/worthb0123/go-shared-fork/pkg/subscription"
	"github.com/worthb0123/go-shared-fork/pkg/transport"
	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// Payload is what subscriber callbacks receive.
type Payload = subscription.Payload

// Callback receives the payloads of a subscribed channel.
type Callback = subscription.Callback

// Config configures a Client.
type Config struct {
	// RequestTimeout bounds Get and Inspect. Default 5s.
	RequestTimeout time.Duration

	// ConnectionID names the connection in logs. Default: a new UUID.
	ConnectionID string

	// Logger receives operational logs. Nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives protocol events. Nil disables them.
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{RequestTimeout: DefaultRequestTimeout}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative: %v", c.RequestTimeout)
	}
	return nil
}

// Stats are counters of a client's lifetime.
type Stats struct {
	Sent           uint64
	Received       uint64
	Malformed      uint64
	CallbackErrors uint64
}

// Client is one consumer connection to a producer.
type Client struct {
	port     transport.Port
	registry *subscription.Registry
	corr     *Correlator

	connID string
	logger *slog.Logger
	plog   log.Logger

	sendMu sync.Mutex
	closed atomic.Bool

	sent, received, malformed, callbackErrors atomic.Uint64
}

// NewClient creates a client over port. Call Run to start receiving.
func NewClient(port transport.Port, cfg Config) *Client {
	if cfg.ConnectionID == "" {
		cfg.ConnectionID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		port:     port,
		registry: subscription.NewRegistry(),
		corr:     NewCorrelator(cfg.RequestTimeout),
		connID:   cfg.ConnectionID,
		logger:   logger.With("conn_id", cfg.ConnectionID),
		plog:     log.OrNoop(cfg.ProtocolLogger),
	}
	c.plog.Log(log.NewStateEvent(c.connID, log.StateEntityConnection, "", "open", ""))
	return c
}

// ConnectionID returns the connection's identifier.
func (c *Client) ConnectionID() string {
	return c.connID
}

// Subscribe registers cb for channel and asks the producer for updates at
// fps (0 for the producer default). The returned func removes only this
// callback; removing a channel's last callback unsubscribes upstream.
func (c *Client) Subscribe(channel string, fps int, cb Callback) (func(), error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	h, first, err := c.registry.Add(channel, fps, cb)
	if err != nil {
		return nil, err
	}
	if first {
		c.plog.Log(c.subscriptionEvent(channel, "subscribed"))
	}

	if err := c.send(wire.Subscribe(channel, fps)); err != nil {
		if last, _ := c.registry.Remove(channel, h); last {
			c.plog.Log(c.subscriptionEvent(channel, "unsubscribed"))
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.removeCallback(channel, h) })
	}, nil
}

func (c *Client) removeCallback(channel string, h subscription.Handle) {
	last, err := c.registry.Remove(channel, h)
	if err != nil || !last {
		return
	}
	c.plog.Log(c.subscriptionEvent(channel, "unsubscribed"))
	if c.closed.Load() {
		return
	}
	if err := c.send(wire.Unsubscribe(channel)); err != nil {
		c.logger.Warn("unsubscribe failed", "channel", channel, "error", err)
	}
}

// Unsubscribe drops every callback of channel and tells the producer.
func (c *Client) Unsubscribe(channel string) error {
	if c.registry.Drop(channel) {
		c.plog.Log(c.subscriptionEvent(channel, "unsubscribed"))
	}
	return c.send(wire.Unsubscribe(channel))
}

// Publish sends data to channel. data may be a json.RawMessage or any
// value encoding/json can marshal. No reply is awaited.
func (c *Client) Publish(channel string, data any) error {
	raw, err := wire.MarshalData(data)
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return c.send(wire.Publish(channel, raw))
}

// Get returns the producer's last stored value for channel.
func (c *Client) Get(ctx context.Context, channel string) (json.RawMessage, error) {
	return c.request(ctx, wire.Get(channel))
}

// Inspect returns the producer's raw diagnostic report.
func (c *Client) Inspect(ctx context.Context) (json.RawMessage, error) {
	return c.request(ctx, wire.Inspect())
}

// InspectReport returns the producer's decoded diagnostic report.
func (c *Client) InspectReport(ctx context.Context) (*wire.InspectReport, error) {
	data, err := c.Inspect(ctx)
	if err != nil {
		return nil, err
	}
	return wire.DecodeInspectReport(data)
}

func (c *Client) request(ctx context.Context, m wire.Message) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	p, err := c.sendMessage(m, true)
	if err != nil {
		return nil, err
	}

	data, err := p.Wait(ctx)
	if errors.Is(err, ErrRequestTimeout) {
		c.logger.Warn("request timed out", "type", m.Type, "channel", m.Channel, "request_id", p.ID)
		c.plog.Log(log.NewErrorEvent(c.connID, log.LayerClient, log.ErrorKindTimeout, err, string(m.Type)))
	}
	return data, err
}

// send stamps m with the next request ID and sends it.
func (c *Client) send(m wire.Message) error {
	_, err := c.sendMessage(m, false)
	return err
}

// sendMessage stamps and sends m. With track set, a pending request is
// registered under the stamped ID before the message leaves.
func (c *Client) sendMessage(m wire.Message, track bool) (*Pending, error) {
	// IDs are allocated under the send lock so port order matches ID order.
	c.sendMu.Lock()
	var p *Pending
	if track {
		p = c.corr.Register()
		m = m.WithRequestID(p.ID)
	} else {
		m = m.WithRequestID(c.corr.NextID())
	}
	data, err := wire.Encode(m)
	if err == nil {
		err = c.port.Send(transport.Text(data))
		if err != nil {
			c.plog.Log(log.NewErrorEvent(c.connID, log.LayerTransport, log.ErrorKindTransport, err, string(m.Type)))
		}
	}
	c.sendMu.Unlock()

	if err != nil {
		if p != nil {
			p.Cancel()
		}
		return nil, err
	}

	c.sent.Add(1)
	c.plog.Log(log.NewMessageEvent(c.connID, log.DirectionOut, &m))
	return p, nil
}

// HandleMessage processes one message received from the port.
func (c *Client) HandleMessage(msg transport.Message) {
	c.received.Add(1)

	if msg.IsBinary() {
		// No channel id on frames: every active subscription receives them.
		c.dispatch("", c.registry.AllCallbacks(), subscription.FramePayload(msg.Data))
		return
	}

	m, err := wire.Decode(msg.Data)
	if err != nil {
		// A correlated reply settles its request even if its envelope is off.
		if loose, perr := wire.Parse(msg.Data); perr == nil && c.resolve(loose) {
			return
		}
		typ, _ := wire.PeekType(msg.Data)
		c.malformed.Add(1)
		c.logger.Warn("dropping malformed message", "type", typ, "size", len(msg.Data), "error", err)
		c.plog.Log(log.NewErrorEvent(c.connID, log.LayerWire, log.ErrorKindEnvelope, err, "decode"))
		return
	}

	if c.resolve(m) {
		return
	}
	c.plog.Log(log.NewMessageEvent(c.connID, log.DirectionIn, m))

	if m.Type.IsPush() && m.Channel != "" {
		c.dispatch(m.Channel, c.registry.Callbacks(m.Channel), subscription.PushPayload(m))
		return
	}

	if m.Type == wire.TypeError {
		c.logger.Debug("producer error", "request_id", m.ID(), "error", m.Error)
	}
}

// resolve settles the pending request m replies to and logs it with its
// latency. It reports false when m correlates with nothing pending.
func (c *Client) resolve(m *wire.Message) bool {
	p := c.corr.Resolve(m)
	if p == nil {
		return false
	}
	ev := log.NewMessageEvent(c.connID, log.DirectionIn, m)
	latency := time.Since(p.Created)
	ev.Message.Latency = &latency
	c.plog.Log(ev)
	return true
}

// dispatch runs each callback, containing panics so siblings still run.
func (c *Client) dispatch(channel string, cbs []Callback, p Payload) {
	for _, cb := range cbs {
		c.invoke(channel, cb, p)
	}
}

func (c *Client) invoke(channel string, cb Callback, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			c.callbackErrors.Add(1)
			err := fmt.Errorf("%w: %v", ErrCallback, r)
			c.logger.Error("subscriber callback panicked", "channel", channel, "error", err)
			ev := log.NewErrorEvent(c.connID, log.LayerClient, log.ErrorKindCallback, err, "dispatch")
			ev.Channel = channel
			c.plog.Log(ev)
		}
	}()
	cb(p)
}

// Run receives from the port until it closes or ctx ends. It returns nil
// after Disconnect, ctx.Err() on cancellation, and the port error
// otherwise.
func (c *Client) Run(ctx context.Context) error {
	for {
		msg, err := c.port.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.closed.Load() {
				return nil
			}
			c.logger.Warn("connection lost", "error", err)
			c.plog.Log(log.NewStateEvent(c.connID, log.StateEntityConnection, "open", "closed", err.Error()))
			return err
		}
		c.HandleMessage(msg)
	}
}

// Disconnect clears subscriptions and pending requests and closes the
// port. Pending requests are abandoned, not failed: their callers return
// on timeout or context end.
func (c *Client) Disconnect() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.registry.ClearAll()
	abandoned := c.corr.Abandon()
	err := c.port.Close()

	c.logger.Debug("disconnected", "abandoned_requests", abandoned)
	c.plog.Log(log.NewStateEvent(c.connID, log.StateEntityConnection, "open", "closed", "disconnect"))
	return err
}

// Subscriptions returns the subscribed channels.
func (c *Client) Subscriptions() []string {
	return c.registry.Channels()
}

// PendingRequests returns the number of requests awaiting a reply.
func (c *Client) PendingRequests() int {
	return c.corr.Len()
}

// Stats returns the client's counters.
func (c *Client) Stats() Stats {
	return Stats{
		Sent:           c.sent.Load(),
		Received:       c.received.Load(),
		Malformed:      c.malformed.Load(),
		CallbackErrors: c.callbackErrors.Load(),
	}
}

func (c *Client) subscriptionEvent(channel, state string) log.Event {
	ev := log.NewStateEvent(c.connID, log.StateEntitySubscription, "", state, "")
	ev.Channel = channel
	return ev
}
