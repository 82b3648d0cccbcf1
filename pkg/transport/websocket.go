package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/worthb0123/go-shared-fork/pkg/log"
	"github.com/worthb0123/go-shared-fork/pkg/version"
)

// DefaultWriteTimeout bounds a single websocket write.
const DefaultWriteTimeout = 10 * time.Second

// WebSocketPort carries messages as websocket frames: text frames are
// envelopes, binary frames are delta frames.
type WebSocketPort struct {
	tap

	conn *websocket.Conn
	in   *inbox

	writeMu      sync.Mutex
	writeTimeout time.Duration

	closing   atomic.Bool
	closeOnce sync.Once
	startOnce sync.Once
}

// NewWebSocketPort wraps an established connection.
func NewWebSocketPort(conn *websocket.Conn) *WebSocketPort {
	conn.SetReadLimit(DefaultMaxMessageSize)
	return &WebSocketPort{
		conn:         conn,
		in:           newInbox(DefaultInboxSize),
		writeTimeout: DefaultWriteTimeout,
	}
}

// DialWebSocket connects to a producer websocket endpoint, offering the
// supported feed subprotocols.
func DialWebSocket(ctx context.Context, url string) (*WebSocketPort, error) {
	dialer := *websocket.DefaultDialer
	dialer.Subprotocols = version.SupportedSubprotocols()
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, url, err)
	}
	return NewWebSocketPort(conn), nil
}

// Send writes msg as one websocket frame.
func (p *WebSocketPort) Send(msg Message) error {
	if p.closing.Load() {
		return ErrPortClosed
	}

	mt := websocket.TextMessage
	if msg.IsBinary() {
		mt = websocket.BinaryMessage
	}

	p.writeMu.Lock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	err := p.conn.WriteMessage(mt, msg.Data)
	p.writeMu.Unlock()
	if err != nil {
		return readError(p.closing.Load(), err)
	}

	p.frame(log.DirectionOut, msg)
	return nil
}

// Receive returns the next frame.
func (p *WebSocketPort) Receive(ctx context.Context) (Message, error) {
	p.startOnce.Do(func() { go p.readLoop() })
	return p.in.receive(ctx)
}

func (p *WebSocketPort) readLoop() {
	for {
		mt, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.in.finish(ErrPortClosed)
				return
			}
			p.in.finish(readError(p.closing.Load(), err))
			return
		}

		msg := Message{Kind: KindText, Data: data}
		if mt == websocket.BinaryMessage {
			msg.Kind = KindBinary
		}
		p.frame(log.DirectionIn, msg)
		if !p.in.deliver(msg) {
			p.in.finish(ErrPortClosed)
			return
		}
	}
}

// Close sends a close frame and closes the connection.
func (p *WebSocketPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closing.Store(true)
		p.in.stop()

		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()

		err = p.conn.Close()
		p.startOnce.Do(func() { p.in.finish(ErrPortClosed) })
	})
	return err
}

// RemoteAddr returns the peer address.
func (p *WebSocketPort) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// Subprotocol returns the negotiated subprotocol, empty when the peer
// offered none.
func (p *WebSocketPort) Subprotocol() string {
	return p.conn.Subprotocol()
}

// WebSocketHandler upgrades HTTP requests and passes each new port to
// accept, which owns it from then on. Any origin is accepted, and peers
// that offer no subprotocol are served as the current version.
func WebSocketHandler(accept func(*WebSocketPort), logger *slog.Logger) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    version.SupportedSubprotocols(),
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			if logger != nil {
				logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		accept(NewWebSocketPort(conn))
	})
}

var (
	_ Port      = (*WebSocketPort)(nil)
	_ Addresser = (*WebSocketPort)(nil)
)
