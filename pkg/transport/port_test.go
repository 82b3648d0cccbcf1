package transport

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worthb0123/go-shared-fork/pkg/log"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// exercisePort checks ordering, kinds and copy semantics across a
// connected pair.
func exercisePort(t *testing.T, a, b Port) {
	t.Helper()
	ctx := testContext(t)

	payload := []byte{1, 5, 0, 200}
	require.NoError(t, a.Send(Text([]byte(`{"type":"subscribe","channel":"device_1","requestId":0}`))))
	require.NoError(t, a.Send(Binary(payload)))
	payload[3] = 0

	m, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindText, m.Kind)
	assert.Contains(t, string(m.Data), `"device_1"`)

	m, err = b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindBinary, m.Kind)
	assert.Equal(t, []byte{1, 5, 0, 200}, m.Data)

	require.NoError(t, b.Send(Text([]byte("pong"))))
	m, err = a.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(m.Data))
}

func TestPipe(t *testing.T) {
	a, b := Pipe()
	exercisePort(t, a, b)

	require.NoError(t, a.Close())
	_, err := b.Receive(testContext(t))
	assert.ErrorIs(t, err, ErrPortClosed)
	assert.ErrorIs(t, b.Send(Text([]byte("x"))), ErrPortClosed)
}

func TestPipeReceiveHonoursContext(t *testing.T) {
	_, b := Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// tcpPair connects two stream ports over loopback TCP.
func tcpPair(t *testing.T) (*StreamPort, *StreamPort) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
		close(accepted)
	}()

	a, err := DialStream(testContext(t), ln.Addr().String())
	require.NoError(t, err)
	c, ok := <-accepted
	require.True(t, ok, "accept failed")
	return a, NewStreamPort(c, 0)
}

func TestStreamPort(t *testing.T) {
	a, b := tcpPair(t)
	defer a.Close()
	defer b.Close()

	exercisePort(t, a, b)
}

func TestStreamPortPeerClose(t *testing.T) {
	a, b := tcpPair(t)
	defer b.Close()

	require.NoError(t, a.Close())
	_, err := b.Receive(testContext(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPortClosed) || errors.Is(err, ErrTransport), "err = %v", err)

	assert.ErrorIs(t, a.Send(Text([]byte("late"))), ErrPortClosed)
}

func TestStreamPortLogsFrames(t *testing.T) {
	a, b := tcpPair(t)
	defer a.Close()
	defer b.Close()

	rec := &recordingLogger{}
	b.SetLogger(rec, "conn-b")

	require.NoError(t, a.Send(Binary([]byte{1, 0, 0, 1})))
	_, err := b.Receive(testContext(t))
	require.NoError(t, err)

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "conn-b", events[0].ConnectionID)
	assert.Equal(t, log.DirectionIn, events[0].Direction)
	assert.Equal(t, log.CategoryDelta, events[0].Category)
}

func TestWebSocketPort(t *testing.T) {
	accepted := make(chan *WebSocketPort, 1)
	srv := httptest.NewServer(WebSocketHandler(func(p *WebSocketPort) { accepted <- p }, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := DialWebSocket(testContext(t), url)
	require.NoError(t, err)
	defer client.Close()

	var server *WebSocketPort
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("no websocket accepted")
	}
	defer server.Close()

	assert.Equal(t, "telemon/1", client.Subprotocol())
	assert.Equal(t, "telemon/1", server.Subprotocol())

	exercisePort(t, client, server)

	require.NoError(t, client.Close())
	_, err = server.Receive(testContext(t))
	assert.ErrorIs(t, err, ErrPortClosed)
}

func TestDialWebSocketFailure(t *testing.T) {
	_, err := DialWebSocket(testContext(t), "ws://127.0.0.1:1/none")
	assert.ErrorIs(t, err, ErrTransport)
}
