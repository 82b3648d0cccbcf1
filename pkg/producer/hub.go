package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/worthb0123/go-shared-fork/pkg/delta"
	"github.com/worthb0123/go-shared-fork/pkg/log"
	"github.com/worthb0123/go-shared-fork/pkg/transport"
	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// Error strings sent to consumers.
const (
	errChannelNotFound = "channel not found"
	errUnknownType     = "unknown message type"
	errBinaryRequest   = "binary messages are not accepted"
)

// ErrHubClosed is returned by Serve after Close.
var ErrHubClosed = errors.New("hub closed")

// subscriber is one session's subscription to one channel.
type subscriber struct {
	session  *Session
	interval time.Duration
	lastSent time.Time

	// last is the device state the consumer was last sent.
	last []uint8
}

// Stats counts hub activity.
type Stats struct {
	Sessions  int
	Deltas    uint64
	Deferred  uint64
	Published uint64
}

// Hub is the reference producer.
type Hub struct {
	cfg    Config
	logger *slog.Logger
	plog   log.Logger

	mu       sync.RWMutex
	devices  map[int]*Device
	subs     map[string][]*subscriber
	store    map[string]json.RawMessage
	sessions map[string]*Session
	closed   bool

	// scratch holds the device state during a broadcast tick.
	scratch []uint8

	deltas, deferred, published atomic.Uint64
}

// NewHub creates a hub and its simulated devices.
func NewHub(cfg Config) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RegisterConfig == nil {
		cfg.RegisterConfig = DefaultRegisterConfig
	}
	if cfg.OutboxLimit <= 0 {
		cfg.OutboxLimit = DefaultOutboxLimit
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	h := &Hub{
		cfg:      cfg,
		logger:   logger,
		plog:     log.OrNoop(cfg.ProtocolLogger),
		devices:  make(map[int]*Device, cfg.Devices),
		subs:     make(map[string][]*subscriber),
		store:    make(map[string]json.RawMessage),
		sessions: make(map[string]*Session),
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for id := 1; id <= cfg.Devices; id++ {
		h.devices[id] = newDevice(id, cfg.Registers, rng, cfg.RegisterConfig)
	}
	return h, nil
}

// Run drives the device physics and the delta broadcast until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	physics := time.NewTicker(h.cfg.PhysicsInterval)
	defer physics.Stop()
	broadcast := time.NewTicker(h.cfg.BroadcastInterval)
	defer broadcast.Stop()

	h.logger.Info("producer running",
		"devices", h.cfg.Devices,
		"registers", h.cfg.Registers,
		"max_fps", h.cfg.MaxFPS)

	for {
		select {
		case <-physics.C:
			h.Step()
		case now := <-broadcast.C:
			h.Broadcast(now)
		case <-ctx.Done():
			return nil
		}
	}
}

// Step advances every device by one physics tick.
func (h *Hub) Step() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, d := range h.devices {
		d.Step()
	}
}

// Broadcast sends each due device subscription the delta between the
// current device state and what it was last sent.
func (h *Hub) Broadcast(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channel, subs := range h.subs {
		id, ok := ParseDeviceChannel(channel)
		if !ok {
			continue
		}
		dev, ok := h.devices[id]
		if !ok {
			continue
		}

		var state []uint8
		for _, sub := range subs {
			if now.Sub(sub.lastSent) < sub.interval {
				continue
			}
			sub.lastSent = now

			if state == nil {
				h.scratch = dev.State(h.scratch)
				state = h.scratch
			}
			frame := delta.EncodeDelta(state, sub.last)
			if len(frame) == 0 {
				continue
			}
			if !sub.session.offer(transport.Binary(frame), h.cfg.OutboxLimit) {
				h.deferred.Add(1)
				continue
			}
			h.deltas.Add(1)
			if len(sub.last) != len(state) {
				sub.last = make([]uint8, len(state))
			}
			copy(sub.last, state)
		}
	}
}

// Serve runs one consumer session over port until the port fails, the
// peer closes it or ctx ends. The port is closed on return.
func (h *Hub) Serve(ctx context.Context, port transport.Port) error {
	id := uuid.NewString()
	s := newSession(id, port, h.logger.With("conn_id", id), h.plog)
	if l, ok := port.(interface{ SetLogger(log.Logger, string) }); ok && h.cfg.ProtocolLogger != nil {
		l.SetLogger(h.cfg.ProtocolLogger, id)
	}

	if err := h.addSession(s); err != nil {
		_ = port.Close()
		return err
	}
	defer h.removeSession(s)

	s.logger.Info("session opened", "remote", s.remote)
	h.plog.Log(producerEvent(log.NewStateEvent(id, log.StateEntityConnection, "", "open", s.remote)))
	go s.writeLoop()

	for {
		m, err := port.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrPortClosed), ctx.Err() != nil:
				return nil
			default:
				return err
			}
		}
		h.handle(s, m)
	}
}

// Close ends every session. Later Serve calls fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (h *Hub) addSession(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.sessions[s.id] = s
	return nil
}

func (h *Hub) removeSession(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	for channel := range h.subs {
		h.dropSubscriber(channel, s)
	}
	h.mu.Unlock()

	s.close()
	s.logger.Info("session closed")
	h.plog.Log(producerEvent(log.NewStateEvent(s.id, log.StateEntityConnection, "open", "closed", "")))
}

// handle processes one inbound message.
func (h *Hub) handle(s *Session, m transport.Message) {
	if m.IsBinary() {
		s.pushMessage(wire.Message{Type: wire.TypeError, Error: errBinaryRequest})
		return
	}

	msg, err := wire.Decode(m.Data)
	if err != nil {
		reply := wire.Message{Type: wire.TypeError, RequestID: wire.PeekRequestID(m.Data)}
		switch {
		case errors.Is(err, wire.ErrUnknownType):
			reply.Error = errUnknownType
		default:
			reply.Error = "unmarshal error: " + err.Error()
		}
		s.logger.Debug("rejecting message", "error", err)
		h.plog.Log(producerEvent(log.NewErrorEvent(s.id, log.LayerWire, log.ErrorKindEnvelope, err, "")))
		s.pushMessage(reply)
		return
	}
	h.plog.Log(producerEvent(log.NewMessageEvent(s.id, log.DirectionIn, msg)))

	switch msg.Type {
	case wire.TypeSubscribe:
		h.subscribe(s, msg)
		s.pushMessage(ack(wire.TypeSubscribed, msg))
	case wire.TypeUnsubscribe:
		h.unsubscribe(s, msg.Channel)
		s.pushMessage(ack(wire.TypeUnsubscribed, msg))
	case wire.TypePublish:
		h.Publish(msg.Channel, msg.Data)
		s.pushMessage(ack(wire.TypePublished, msg))
	case wire.TypeGet:
		data, ok := h.Get(msg.Channel)
		if !ok {
			s.pushMessage(wire.Message{Type: wire.TypeError, RequestID: msg.RequestID, Error: errChannelNotFound})
			return
		}
		s.pushMessage(wire.Message{Type: wire.TypeData, Channel: msg.Channel, Data: data, RequestID: msg.RequestID})
	case wire.TypeInspect:
		data, err := json.Marshal(h.Inspect())
		if err != nil {
			s.pushMessage(wire.Message{Type: wire.TypeError, RequestID: msg.RequestID, Error: err.Error()})
			return
		}
		s.pushMessage(wire.Message{Type: wire.TypeInspect, Data: data, RequestID: msg.RequestID})
	default:
		s.pushMessage(wire.Message{Type: wire.TypeError, RequestID: msg.RequestID, Error: errUnknownType})
	}
}

func ack(t wire.MessageType, req *wire.Message) wire.Message {
	return wire.Message{Type: t, RequestID: req.RequestID}
}

// subscribe adds or refreshes the session's subscription. Device channels
// get a full snapshot and their configs; other channels get the stored
// value, if any.
func (h *Hub) subscribe(s *Session, msg *wire.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := h.findSubscriber(msg.Channel, s)
	if sub == nil {
		sub = &subscriber{session: s}
		h.subs[msg.Channel] = append(h.subs[msg.Channel], sub)
	}
	sub.interval = h.cfg.interval(msg.FPS)
	sub.lastSent = time.Now()

	if id, ok := ParseDeviceChannel(msg.Channel); ok {
		dev, ok := h.devices[id]
		if !ok {
			return
		}
		sub.last = dev.State(nil)
		s.push(transport.Binary(delta.EncodeSnapshot(sub.last)))

		configs, err := json.Marshal(dev.configs)
		if err != nil {
			s.logger.Error("encode configs", "device", id, "error", err)
			return
		}
		s.pushMessage(wire.Push(wire.TypeConfig, msg.Channel, configs))
		return
	}

	if data, ok := h.store[msg.Channel]; ok {
		s.pushMessage(wire.Push(wire.TypeData, msg.Channel, data))
	}
}

func (h *Hub) unsubscribe(s *Session, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropSubscriber(channel, s)
}

// findSubscriber returns the session's subscription to channel. Caller
// holds h.mu.
func (h *Hub) findSubscriber(channel string, s *Session) *subscriber {
	for _, sub := range h.subs[channel] {
		if sub.session == s {
			return sub
		}
	}
	return nil
}

// dropSubscriber removes the session from channel. Caller holds h.mu.
func (h *Hub) dropSubscriber(channel string, s *Session) {
	subs := slices.DeleteFunc(h.subs[channel], func(sub *subscriber) bool {
		return sub.session == s
	})
	if len(subs) == 0 {
		delete(h.subs, channel)
		return
	}
	h.subs[channel] = subs
}

// Publish stores data as the channel's value and pushes it to every
// subscriber of the channel.
func (h *Hub) Publish(channel string, data json.RawMessage) {
	data = append(json.RawMessage(nil), data...)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.store[channel] = data
	h.published.Add(1)
	for _, sub := range h.subs[channel] {
		sub.session.pushMessage(wire.Push(wire.TypeData, channel, data))
	}
}

// Get returns the stored value of a channel.
func (h *Hub) Get(channel string) (json.RawMessage, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, ok := h.store[channel]
	return data, ok
}

// Inspect reports subscriber counts and stored values.
func (h *Hub) Inspect() wire.InspectReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r := wire.InspectReport{
		Channels: wire.InspectChannels{
			SubscriberCounts: make(map[string]int, len(h.subs)),
			DataStore:        make(map[string]string, len(h.store)),
		},
		TotalChannels: len(h.subs),
		TotalData:     len(h.store),
	}
	for channel, subs := range h.subs {
		r.Channels.SubscriberCounts[channel] = len(subs)
	}
	for channel, data := range h.store {
		r.Channels.DataStore[channel] = string(data)
	}
	return r
}

// SetDeviceConfigs replaces a device's register configs and pushes them to
// its subscribers.
func (h *Hub) SetDeviceConfigs(id int, configs []*wire.RegisterConfig) error {
	data, err := json.Marshal(configs)
	if err != nil {
		return fmt.Errorf("encode configs: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dev, ok := h.devices[id]
	if !ok {
		return fmt.Errorf("device %d: %s", id, errChannelNotFound)
	}
	dev.configs = configs
	channel := DeviceChannel(id)
	for _, sub := range h.subs[channel] {
		sub.session.pushMessage(wire.Push(wire.TypeConfig, channel, data))
	}
	return nil
}

// Devices returns the ids of the simulated devices in ascending order.
func (h *Hub) Devices() []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]int, 0, len(h.devices))
	for id := range h.devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DeviceState returns a copy of a device's published values.
func (h *Hub) DeviceState(id int) ([]uint8, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	dev, ok := h.devices[id]
	if !ok {
		return nil, false
	}
	return dev.State(nil), true
}

// Stats returns activity counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	sessions := len(h.sessions)
	h.mu.RUnlock()
	return Stats{
		Sessions:  sessions,
		Deltas:    h.deltas.Load(),
		Deferred:  h.deferred.Load(),
		Published: h.published.Load(),
	}
}
