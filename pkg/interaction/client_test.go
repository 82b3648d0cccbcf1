package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worthb0123/go-shared-fork/pkg/transport"
	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// newTestClient returns a client and the producer end of its port.
func newTestClient(t *testing.T, timeout time.Duration) (*Client, *transport.PipePort) {
	t.Helper()
	consumer, producer := transport.Pipe()
	cfg := DefaultConfig()
	if timeout > 0 {
		cfg.RequestTimeout = timeout
	}
	c := NewClient(consumer, cfg)
	t.Cleanup(func() { c.Disconnect() })
	return c, producer
}

func expectEnvelope(t *testing.T, p transport.Port) *wire.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := p.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, transport.KindText, msg.Kind)
	m, err := wire.Decode(msg.Data)
	require.NoError(t, err)
	return m
}

func expectSilence(t *testing.T, p transport.Port) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	msg, err := p.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "unexpected message %s", msg.Data)
}

func text(t *testing.T, m wire.Message) transport.Message {
	t.Helper()
	data, err := wire.Encode(m)
	require.NoError(t, err)
	return transport.Text(data)
}

type getResult struct {
	data json.RawMessage
	err  error
}

func asyncGet(c *Client, channel string) <-chan getResult {
	out := make(chan getResult, 1)
	go func() {
		data, err := c.Get(context.Background(), channel)
		out <- getResult{data, err}
	}()
	return out
}

func TestGetResolvesWithReply(t *testing.T) {
	c, producer := newTestClient(t, 0)

	var pushed int
	_, err := c.Subscribe("weather", 0, func(Payload) { pushed++ })
	require.NoError(t, err)
	sub := expectEnvelope(t, producer)
	assert.Equal(t, uint64(0), sub.ID())

	res := asyncGet(c, "weather")
	req := expectEnvelope(t, producer)
	assert.Equal(t, wire.TypeGet, req.Type)
	assert.Equal(t, "weather", req.Channel)
	assert.Equal(t, uint64(1), req.ID())

	// The producer answers get with a data envelope for the channel; it
	// must resolve the request and not reach subscribers.
	reply := wire.Reply(wire.TypeData, req.ID(), json.RawMessage(`{"x":1}`))
	reply.Channel = "weather"
	c.HandleMessage(text(t, reply))

	r := <-res
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"x":1}`, string(r.data))
	assert.Equal(t, 0, pushed)
	assert.Equal(t, 0, c.PendingRequests())
}

func TestGetResolvesWithOffTypeReply(t *testing.T) {
	c, producer := newTestClient(t, time.Second)

	res := asyncGet(c, "weather")
	req := expectEnvelope(t, producer)

	// Echoed get type without a channel fails validation but still correlates.
	reply := fmt.Sprintf(`{"type":"get","requestId":%d,"data":{"x":1}}`, req.ID())
	require.NoError(t, producer.Send(transport.Text([]byte(reply))))

	r := <-res
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"x":1}`, string(r.data))
	assert.Zero(t, c.Stats().Malformed)

	// Uncorrelated, the same shape is still malformed.
	c.HandleMessage(transport.Text([]byte(reply)))
	assert.Equal(t, uint64(1), c.Stats().Malformed)
}

func TestGetTimesOut(t *testing.T) {
	c, producer := newTestClient(t, 50*time.Millisecond)

	start := time.Now()
	res := asyncGet(c, "weather")
	req := expectEnvelope(t, producer)

	r := <-res
	assert.ErrorIs(t, r.err, ErrRequestTimeout)
	assert.NotErrorIs(t, r.err, ErrClientClosed)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 0, c.PendingRequests())

	// A late reply correlates with nothing and is dropped.
	c.HandleMessage(text(t, wire.Reply(wire.TypeData, req.ID(), json.RawMessage(`1`))))
	assert.Equal(t, uint64(0), c.Stats().CallbackErrors)
}

func TestGetHonoursContext(t *testing.T) {
	c, producer := newTestClient(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "weather")
		errc <- err
	}()
	expectEnvelope(t, producer)
	cancel()

	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, 0, c.PendingRequests())
}

func TestGetRemoteError(t *testing.T) {
	c, producer := newTestClient(t, 0)

	res := asyncGet(c, "missing")
	req := expectEnvelope(t, producer)
	c.HandleMessage(text(t, wire.ReplyError(req.ID(), "channel not found")))

	r := <-res
	var remote *RemoteError
	require.ErrorAs(t, r.err, &remote)
	assert.Equal(t, "channel not found", remote.Message)
	assert.Equal(t, req.ID(), remote.RequestID)
}

func TestInspectReport(t *testing.T) {
	c, producer := newTestClient(t, 0)

	type result struct {
		report *wire.InspectReport
		err    error
	}
	res := make(chan result, 1)
	go func() {
		r, err := c.InspectReport(context.Background())
		res <- result{r, err}
	}()

	req := expectEnvelope(t, producer)
	assert.Equal(t, wire.TypeInspect, req.Type)
	c.HandleMessage(text(t, wire.Reply(wire.TypeInspect, req.ID(), json.RawMessage(
		`{"channels":{"subscriberCounts":{"device_1":2},"dataStore":{"weather":"{\"t\":3}"}},"totalChannels":1,"totalData":1}`))))

	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, 2, r.report.Channels.SubscriberCounts["device_1"])
	assert.Equal(t, 1, r.report.TotalData)
}

func TestEveryEnvelopeGetsNextRequestID(t *testing.T) {
	c, producer := newTestClient(t, 0)

	_, err := c.Subscribe("device_1", 10, func(Payload) {})
	require.NoError(t, err)
	require.NoError(t, c.Publish("weather", map[string]int{"t": 3}))
	require.NoError(t, c.Unsubscribe("device_1"))

	for want := uint64(0); want < 3; want++ {
		m := expectEnvelope(t, producer)
		require.True(t, m.HasRequestID())
		assert.Equal(t, want, m.ID())
	}
}

func TestRemovingLastCallbackUnsubscribesOnce(t *testing.T) {
	c, producer := newTestClient(t, 0)

	var mu sync.Mutex
	calls := map[string]int{}
	record := func(name string) Callback {
		return func(Payload) {
			mu.Lock()
			calls[name]++
			mu.Unlock()
		}
	}

	unsubA, err := c.Subscribe("weather", 0, record("a"))
	require.NoError(t, err)
	unsubB, err := c.Subscribe("weather", 0, record("b"))
	require.NoError(t, err)
	expectEnvelope(t, producer)
	expectEnvelope(t, producer)

	unsubA()
	expectSilence(t, producer)

	unsubB()
	m := expectEnvelope(t, producer)
	assert.Equal(t, wire.TypeUnsubscribe, m.Type)
	assert.Equal(t, "weather", m.Channel)

	unsubB()
	expectSilence(t, producer)

	c.HandleMessage(text(t, wire.Push(wire.TypeData, "weather", json.RawMessage(`{}`))))
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, calls)
}

func TestPushRoutedByChannel(t *testing.T) {
	c, _ := newTestClient(t, 0)

	var got []Payload
	_, _ = c.Subscribe("weather", 0, func(p Payload) { got = append(got, p) })
	_, _ = c.Subscribe("traffic", 0, func(Payload) { t.Error("traffic callback called") })

	c.HandleMessage(text(t, wire.Push(wire.TypeData, "weather", json.RawMessage(`{"t":3}`))))
	c.HandleMessage(text(t, wire.Push(wire.TypeConfig, "weather", json.RawMessage(`[]`))))

	require.Len(t, got, 2)
	assert.Equal(t, wire.TypeData, got[0].MessageType())
	assert.JSONEq(t, `{"t":3}`, string(got[0].JSON()))
	assert.Equal(t, wire.TypeConfig, got[1].MessageType())
}

func TestBinaryFramesReachEverySubscription(t *testing.T) {
	c, _ := newTestClient(t, 0)

	var frames [][]byte
	cb := func(p Payload) {
		require.True(t, p.IsBinary())
		frames = append(frames, p.Bytes())
	}
	_, _ = c.Subscribe("device_1", 10, cb)
	_, _ = c.Subscribe("device_2", 10, cb)

	c.HandleMessage(transport.Binary([]byte{1, 5, 0, 200}))
	assert.Len(t, frames, 2)
}

func TestPanickingCallbackDoesNotBlockSiblings(t *testing.T) {
	c, _ := newTestClient(t, 0)

	var ran bool
	_, _ = c.Subscribe("weather", 0, func(Payload) { panic("boom") })
	_, _ = c.Subscribe("weather", 0, func(Payload) { ran = true })

	c.HandleMessage(text(t, wire.Push(wire.TypeData, "weather", json.RawMessage(`1`))))
	assert.True(t, ran)
	assert.Equal(t, uint64(1), c.Stats().CallbackErrors)
}

func TestMalformedEnvelopeDropped(t *testing.T) {
	c, _ := newTestClient(t, 0)

	_, _ = c.Subscribe("weather", 0, func(Payload) { t.Error("callback called") })
	c.HandleMessage(transport.Text([]byte(`{"type":`)))
	c.HandleMessage(transport.Text([]byte(`[1,2]`)))
	c.HandleMessage(transport.Text([]byte(`{"type":"bogus","channel":"weather"}`)))

	assert.Equal(t, uint64(3), c.Stats().Malformed)
}

func TestDisconnectAbandonsPending(t *testing.T) {
	c, producer := newTestClient(t, 100*time.Millisecond)
	_, _ = c.Subscribe("weather", 0, func(Payload) {})
	expectEnvelope(t, producer)

	res := asyncGet(c, "weather")
	expectEnvelope(t, producer)
	require.Eventually(t, func() bool { return c.PendingRequests() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Disconnect())
	assert.Empty(t, c.Subscriptions())
	assert.Equal(t, 0, c.PendingRequests())

	select {
	case r := <-res:
		t.Fatalf("abandoned request settled early: %v", r.err)
	case <-time.After(20 * time.Millisecond):
	}
	abandoned := (<-res).err
	assert.ErrorIs(t, abandoned, ErrRequestTimeout)
	assert.ErrorIs(t, abandoned, ErrClientClosed)

	_, err := c.Subscribe("weather", 0, func(Payload) {})
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestRunPumpsPort(t *testing.T) {
	c, producer := newTestClient(t, 0)

	got := make(chan Payload, 1)
	_, _ = c.Subscribe("weather", 0, func(p Payload) { got <- p })
	expectEnvelope(t, producer)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	require.NoError(t, producer.Send(text(t, wire.Push(wire.TypeData, "weather", json.RawMessage(`7`)))))
	select {
	case p := <-got:
		assert.Equal(t, "7", string(p.JSON()))
	case <-time.After(2 * time.Second):
		t.Fatal("push not delivered")
	}

	require.NoError(t, c.Disconnect())
	assert.NoError(t, <-done)
}

func TestRunReportsPeerClose(t *testing.T) {
	c, producer := newTestClient(t, 0)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	producer.Close()

	assert.ErrorIs(t, <-done, transport.ErrPortClosed)
}

type stubPort struct{ mock.Mock }

func (s *stubPort) Send(msg transport.Message) error {
	return s.Called(msg).Error(0)
}

func (s *stubPort) Receive(ctx context.Context) (transport.Message, error) {
	args := s.Called(ctx)
	return args.Get(0).(transport.Message), args.Error(1)
}

func (s *stubPort) Close() error {
	return s.Called().Error(0)
}

func TestSubscribeSendFailureRollsBack(t *testing.T) {
	port := &stubPort{}
	sendErr := errors.New("broken pipe")
	port.On("Send", mock.Anything).Return(sendErr).Once()
	port.On("Close").Return(nil).Maybe()

	c := NewClient(port, DefaultConfig())

	unsub, err := c.Subscribe("weather", 0, func(Payload) {})
	assert.ErrorIs(t, err, sendErr)
	assert.Nil(t, unsub)
	assert.Empty(t, c.Subscriptions())

	require.NoError(t, c.Disconnect())
	_, err = c.Get(context.Background(), "weather")
	assert.ErrorIs(t, err, ErrClientClosed)
	port.AssertExpectations(t)
}
