package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/worthb0123/go-shared-fork/pkg/log"
)

// DefaultInboxSize is the number of received messages buffered ahead of
// Receive by socket-backed ports.
const DefaultInboxSize = 256

// StreamPort carries framed messages over a byte stream.
type StreamPort struct {
	tap

	rwc    io.ReadWriteCloser
	reader *FrameReader
	writer *FrameWriter
	in     *inbox

	closing   atomic.Bool
	closeOnce sync.Once
	startOnce sync.Once
}

// NewStreamPort wraps rwc. maxSize 0 selects DefaultMaxMessageSize.
// The read loop starts on the first Receive, so SetLogger may be called
// before that.
func NewStreamPort(rwc io.ReadWriteCloser, maxSize uint32) *StreamPort {
	return &StreamPort{
		rwc:    rwc,
		reader: NewFrameReader(rwc, maxSize),
		writer: NewFrameWriter(rwc, maxSize),
		in:     newInbox(DefaultInboxSize),
	}
}

// DialStream connects to a producer's stream endpoint over TCP.
func DialStream(ctx context.Context, addr string) (*StreamPort, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, addr, err)
	}
	return NewStreamPort(conn, 0), nil
}

// Send writes msg as one frame.
func (p *StreamPort) Send(msg Message) error {
	if p.closing.Load() {
		return ErrPortClosed
	}
	if err := p.writer.WriteFrame(msg); err != nil {
		if errors.Is(err, ErrMessageTooLarge) || errors.Is(err, ErrUnknownKind) {
			return err
		}
		return readError(p.closing.Load(), err)
	}
	p.frame(log.DirectionOut, msg)
	return nil
}

// Receive returns the next frame.
func (p *StreamPort) Receive(ctx context.Context) (Message, error) {
	p.startOnce.Do(func() { go p.readLoop() })
	return p.in.receive(ctx)
}

func (p *StreamPort) readLoop() {
	for {
		msg, err := p.reader.ReadFrame()
		if err != nil {
			if err == io.EOF {
				p.in.finish(ErrPortClosed)
				return
			}
			p.in.finish(readError(p.closing.Load(), err))
			return
		}
		p.frame(log.DirectionIn, msg)
		if !p.in.deliver(msg) {
			p.in.finish(ErrPortClosed)
			return
		}
	}
}

// Close closes the stream.
func (p *StreamPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closing.Store(true)
		p.in.stop()
		err = p.rwc.Close()
		// A never-started read loop would leave Receive callers blocked.
		p.startOnce.Do(func() { p.in.finish(ErrPortClosed) })
	})
	return err
}

// RemoteAddr returns the peer address when the stream is a net.Conn.
func (p *StreamPort) RemoteAddr() string {
	if c, ok := p.rwc.(net.Conn); ok {
		return c.RemoteAddr().String()
	}
	return ""
}

var (
	_ Port      = (*StreamPort)(nil)
	_ Addresser = (*StreamPort)(nil)
)
