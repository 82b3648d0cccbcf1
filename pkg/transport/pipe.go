package transport

import (
	"context"
	"sync"

	"github.com/worthb0123/go-shared-fork/pkg/log"
)

// DefaultPipeBuffer is the number of messages a pipe end buffers.
const DefaultPipeBuffer = 64

// PipePort is one end of an in-memory port pair.
type PipePort struct {
	tap

	in   chan Message
	peer *PipePort

	// Shared by both ends: closing either closes the pair.
	done      chan struct{}
	closeOnce *sync.Once
}

// Pipe creates a connected pair of ports.
func Pipe() (*PipePort, *PipePort) {
	return PipeWithBuffer(DefaultPipeBuffer)
}

// PipeWithBuffer creates a connected pair buffering size messages per end.
func PipeWithBuffer(size int) (*PipePort, *PipePort) {
	done := make(chan struct{})
	once := &sync.Once{}
	a := &PipePort{in: make(chan Message, size), done: done, closeOnce: once}
	b := &PipePort{in: make(chan Message, size), done: done, closeOnce: once}
	a.peer, b.peer = b, a
	return a, b
}

// Send delivers a copy of msg to the peer, blocking while its buffer is full.
func (p *PipePort) Send(msg Message) error {
	select {
	case <-p.done:
		return ErrPortClosed
	default:
	}

	msg = msg.Clone()
	select {
	case p.peer.in <- msg:
		p.frame(log.DirectionOut, msg)
		return nil
	case <-p.done:
		return ErrPortClosed
	}
}

// Receive returns the next message from the peer.
func (p *PipePort) Receive(ctx context.Context) (Message, error) {
	select {
	case <-p.done:
		return Message{}, ErrPortClosed
	default:
	}

	select {
	case m := <-p.in:
		p.frame(log.DirectionIn, m)
		return m, nil
	case <-p.done:
		return Message{}, ErrPortClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Close closes both ends.
func (p *PipePort) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// RemoteAddr identifies the in-memory peer.
func (p *PipePort) RemoteAddr() string {
	return "pipe"
}

var (
	_ Port      = (*PipePort)(nil)
	_ Addresser = (*PipePort)(nil)
)
