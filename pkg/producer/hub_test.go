package producer

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worthb0123/go-shared-fork/pkg/log"
	"github.com/worthb0123/go-shared-fork/pkg/register"
	"github.com/worthb0123/go-shared-fork/pkg/transport"
	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Devices = 1
	cfg.Registers = 600
	cfg.Seed = 42
	return cfg
}

// serveHub starts a session and returns the consumer end of its port.
func serveHub(t *testing.T, h *Hub) *transport.PipePort {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	consumer, producerEnd := transport.Pipe()

	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx, producerEnd) }()
	t.Cleanup(func() {
		cancel()
		_ = consumer.Close()
		<-done
	})
	return consumer
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h, err := NewHub(testConfig())
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func send(t *testing.T, p transport.Port, m wire.Message) {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, p.Send(transport.Text(data)))
}

func receive(t *testing.T, p transport.Port) transport.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, err := p.Receive(ctx)
	require.NoError(t, err)
	return m
}

func receiveEnvelope(t *testing.T, p transport.Port) *wire.Message {
	t.Helper()
	m := receive(t, p)
	require.Equal(t, transport.KindText, m.Kind, "got a binary frame")
	var msg wire.Message
	require.NoError(t, json.Unmarshal(m.Data, &msg))
	return &msg
}

func expectNothing(t *testing.T, p transport.Port) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	m, err := p.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "unexpected message %q", m.Data)
}

func TestSubscribeDeviceSendsSnapshotConfigsAndAck(t *testing.T) {
	h := newTestHub(t)
	p := serveHub(t, h)

	send(t, p, wire.Subscribe("device_1", 5).WithRequestID(3))

	snap := receive(t, p)
	require.True(t, snap.IsBinary())
	store := register.NewStore(nil)
	require.NoError(t, store.ApplyFrame(snap.Data))
	raw, _ := store.Snapshot()
	want, ok := h.DeviceState(1)
	require.True(t, ok)
	assert.Equal(t, want, raw)

	cfg := receiveEnvelope(t, p)
	assert.Equal(t, wire.TypeConfig, cfg.Type)
	assert.Equal(t, "device_1", cfg.Channel)
	assert.False(t, cfg.HasRequestID())
	configs, ok, err := wire.DecodeConfigs(cfg.Data)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, configs, 600)

	ackMsg := receiveEnvelope(t, p)
	assert.Equal(t, wire.TypeSubscribed, ackMsg.Type)
	assert.Equal(t, uint64(3), ackMsg.ID())
}

func TestBroadcastSendsDeltasAtSubscribedRate(t *testing.T) {
	h := newTestHub(t)
	p := serveHub(t, h)

	send(t, p, wire.Subscribe("device_1", 5).WithRequestID(0))
	store := register.NewStore(nil)
	require.NoError(t, store.ApplyFrame(receive(t, p).Data))
	receiveEnvelope(t, p) // config
	receiveEnvelope(t, p) // ack

	h.Step()
	h.Broadcast(time.Now())
	expectNothing(t, p)

	// 5 fps is a 200ms interval.
	h.Broadcast(time.Now().Add(250 * time.Millisecond))
	frame := receive(t, p)
	require.True(t, frame.IsBinary())
	require.NoError(t, store.ApplyFrame(frame.Data))

	raw, _ := store.Snapshot()
	want, _ := h.DeviceState(1)
	assert.Equal(t, want, raw)
	assert.Equal(t, uint64(1), h.Stats().Deltas)

	// Nothing changed since the last delta.
	h.Broadcast(time.Now().Add(time.Second))
	expectNothing(t, p)
}

func TestSubscribeUnknownDevice(t *testing.T) {
	h := newTestHub(t)
	p := serveHub(t, h)

	send(t, p, wire.Subscribe("device_9", 0).WithRequestID(1))
	msg := receiveEnvelope(t, p)
	assert.Equal(t, wire.TypeSubscribed, msg.Type)

	h.Broadcast(time.Now().Add(time.Second))
	expectNothing(t, p)
}

func TestPublishGetAndFanOut(t *testing.T) {
	h := newTestHub(t)
	a := serveHub(t, h)
	b := serveHub(t, h)

	send(t, b, wire.Subscribe("settings", 0).WithRequestID(0))
	assert.Equal(t, wire.TypeSubscribed, receiveEnvelope(t, b).Type)

	send(t, a, wire.Publish("settings", json.RawMessage(`{"mode":"auto"}`)).WithRequestID(0))
	assert.Equal(t, wire.TypePublished, receiveEnvelope(t, a).Type)

	push := receiveEnvelope(t, b)
	assert.Equal(t, wire.TypeData, push.Type)
	assert.Equal(t, "settings", push.Channel)
	assert.JSONEq(t, `{"mode":"auto"}`, string(push.Data))
	assert.False(t, push.HasRequestID())

	send(t, a, wire.Get("settings").WithRequestID(1))
	got := receiveEnvelope(t, a)
	assert.Equal(t, wire.TypeData, got.Type)
	assert.Equal(t, uint64(1), got.ID())
	assert.JSONEq(t, `{"mode":"auto"}`, string(got.Data))

	// A late subscriber gets the stored value first.
	send(t, a, wire.Subscribe("settings", 0).WithRequestID(2))
	first := receiveEnvelope(t, a)
	assert.Equal(t, wire.TypeData, first.Type)
	assert.False(t, first.HasRequestID())
	assert.Equal(t, wire.TypeSubscribed, receiveEnvelope(t, a).Type)
}

func TestGetMissingChannel(t *testing.T) {
	h := newTestHub(t)
	p := serveHub(t, h)

	send(t, p, wire.Get("nope").WithRequestID(8))
	msg := receiveEnvelope(t, p)
	assert.Equal(t, wire.TypeError, msg.Type)
	assert.Equal(t, "channel not found", msg.Error)
	assert.Equal(t, uint64(8), msg.ID())
}

func TestInspect(t *testing.T) {
	h := newTestHub(t)
	p := serveHub(t, h)

	send(t, p, wire.Subscribe("device_1", 0).WithRequestID(0))
	receive(t, p)
	receiveEnvelope(t, p)
	receiveEnvelope(t, p)
	h.Publish("notes", json.RawMessage(`"hello"`))

	send(t, p, wire.Inspect().WithRequestID(1))
	msg := receiveEnvelope(t, p)
	require.Equal(t, wire.TypeInspect, msg.Type)
	assert.Equal(t, uint64(1), msg.ID())

	report, err := wire.DecodeInspectReport(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalChannels)
	assert.Equal(t, 1, report.TotalData)
	assert.Equal(t, 1, report.Channels.SubscriberCounts["device_1"])
	assert.Equal(t, `"hello"`, report.Channels.DataStore["notes"])
}

func TestUnsubscribeStopsDeltas(t *testing.T) {
	h := newTestHub(t)
	p := serveHub(t, h)

	send(t, p, wire.Subscribe("device_1", 10).WithRequestID(0))
	receive(t, p)
	receiveEnvelope(t, p)
	receiveEnvelope(t, p)

	send(t, p, wire.Unsubscribe("device_1").WithRequestID(1))
	msg := receiveEnvelope(t, p)
	assert.Equal(t, wire.TypeUnsubscribed, msg.Type)
	assert.Equal(t, uint64(1), msg.ID())
	assert.Empty(t, h.Inspect().Channels.SubscriberCounts)

	h.Step()
	h.Broadcast(time.Now().Add(time.Second))
	expectNothing(t, p)
}

func TestRejectsBadMessages(t *testing.T) {
	h := newTestHub(t)
	p := serveHub(t, h)

	require.NoError(t, p.Send(transport.Text([]byte(`{"type":"launch","requestId":4}`))))
	msg := receiveEnvelope(t, p)
	assert.Equal(t, wire.TypeError, msg.Type)
	assert.Equal(t, "unknown message type", msg.Error)
	assert.Equal(t, uint64(4), msg.ID())

	require.NoError(t, p.Send(transport.Text([]byte(`not json`))))
	msg = receiveEnvelope(t, p)
	assert.Equal(t, wire.TypeError, msg.Type)
	assert.Contains(t, msg.Error, "unmarshal error")
	assert.False(t, msg.HasRequestID())

	send(t, p, wire.Message{Type: wire.TypeData, Channel: "x"}.WithRequestID(5))
	msg = receiveEnvelope(t, p)
	assert.Equal(t, "unknown message type", msg.Error)
	assert.Equal(t, uint64(5), msg.ID())

	require.NoError(t, p.Send(transport.Binary([]byte{1, 0, 0, 1})))
	msg = receiveEnvelope(t, p)
	assert.Equal(t, wire.TypeError, msg.Type)
}

func TestSessionClosedOnPeerClose(t *testing.T) {
	h := newTestHub(t)
	consumer, producerEnd := transport.Pipe()

	done := make(chan error, 1)
	go func() { done <- h.Serve(context.Background(), producerEnd) }()
	send(t, consumer, wire.Subscribe("device_1", 0).WithRequestID(0))
	receive(t, consumer)

	require.NoError(t, consumer.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after peer close")
	}
	assert.Equal(t, 0, h.Stats().Sessions)
	assert.Empty(t, h.Inspect().Channels.SubscriberCounts)
}

func TestServeAfterClose(t *testing.T) {
	h := newTestHub(t)
	h.Close()

	_, producerEnd := transport.Pipe()
	err := h.Serve(context.Background(), producerEnd)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestSetDeviceConfigsPushes(t *testing.T) {
	h := newTestHub(t)
	p := serveHub(t, h)

	send(t, p, wire.Subscribe("device_1", 0).WithRequestID(0))
	receive(t, p)
	receiveEnvelope(t, p)
	receiveEnvelope(t, p)

	cfg := wire.DefaultRegisterConfig()
	cfg.Scale = 2
	require.NoError(t, h.SetDeviceConfigs(1, []*wire.RegisterConfig{&cfg}))

	msg := receiveEnvelope(t, p)
	assert.Equal(t, wire.TypeConfig, msg.Type)
	configs, _, err := wire.DecodeConfigs(msg.Data)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, 2.0, configs[0].Scale)

	assert.Error(t, h.SetDeviceConfigs(5, nil))
}

func TestSessionOfferLimit(t *testing.T) {
	_, producerEnd := transport.Pipe()
	s := newSession("s", producerEnd, slog.New(slog.DiscardHandler), log.NoopLogger{})

	assert.True(t, s.offer(transport.Binary([]byte{1}), 1))
	assert.False(t, s.offer(transport.Binary([]byte{2}), 1))
	assert.True(t, s.push(transport.Binary([]byte{3})))
	assert.Equal(t, 2, s.Pending())

	s.close()
	assert.False(t, s.push(transport.Binary([]byte{4})))
}
