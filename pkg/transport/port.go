package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/worthb0123/go-shared-fork/pkg/log"
)

// Port errors.
var (
	// ErrTransport wraps failures of the underlying connection.
	ErrTransport = errors.New("transport error")

	// ErrPortClosed is returned once a port has been closed by either side.
	ErrPortClosed = errors.New("port closed")
)

// Kind distinguishes text envelopes from binary frames.
type Kind uint8

const (
	// KindText is a JSON control envelope.
	KindText Kind = 1
	// KindBinary is a binary delta frame.
	KindBinary Kind = 2
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "TEXT"
	case KindBinary:
		return "BINARY"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return k == KindText || k == KindBinary
}

// Message is one unit sent over a port.
type Message struct {
	Kind Kind
	Data []byte
}

// Text creates a text message.
func Text(data []byte) Message {
	return Message{Kind: KindText, Data: data}
}

// Binary creates a binary message.
func Binary(data []byte) Message {
	return Message{Kind: KindBinary, Data: data}
}

// IsBinary reports whether m is a binary frame.
func (m Message) IsBinary() bool {
	return m.Kind == KindBinary
}

// Clone returns a copy of m that shares no memory with it.
func (m Message) Clone() Message {
	return Message{Kind: m.Kind, Data: append([]byte(nil), m.Data...)}
}

// Port is a bidirectional message-passing endpoint.
type Port interface {
	// Send queues a message for the peer.
	Send(msg Message) error

	// Receive blocks until a message arrives, ctx ends, or the port fails.
	Receive(ctx context.Context) (Message, error)

	// Close releases the port. Pending and later calls fail with ErrPortClosed.
	Close() error
}

// Addresser is implemented by ports that know their peer's address.
type Addresser interface {
	RemoteAddr() string
}

// tap emits frame events for a port. SetLogger must be called before
// the port is used.
type tap struct {
	logger log.Logger
	connID string
}

// SetLogger configures protocol logging. Pass nil to disable.
func (t *tap) SetLogger(logger log.Logger, connID string) {
	t.logger = logger
	t.connID = connID
}

func (t *tap) frame(dir log.Direction, m Message) {
	if t.logger != nil {
		t.logger.Log(log.NewFrameEvent(t.connID, dir, m.IsBinary(), m.Data))
	}
}

// inbox buffers messages from a read loop goroutine. Only the read loop
// closes msgs, after recording why.
type inbox struct {
	msgs chan Message
	done chan struct{}

	mu  sync.Mutex
	err error
}

func newInbox(size int) *inbox {
	return &inbox{
		msgs: make(chan Message, size),
		done: make(chan struct{}),
	}
}

// deliver hands m to Receive. It returns false once the port is closed.
func (in *inbox) deliver(m Message) bool {
	select {
	case in.msgs <- m:
		return true
	case <-in.done:
		return false
	}
}

// finish records the read loop's terminal error and ends the stream.
func (in *inbox) finish(err error) {
	in.mu.Lock()
	in.err = err
	in.mu.Unlock()
	close(in.msgs)
}

func (in *inbox) receive(ctx context.Context) (Message, error) {
	select {
	case m, ok := <-in.msgs:
		if !ok {
			in.mu.Lock()
			defer in.mu.Unlock()
			return Message{}, in.err
		}
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// stop unblocks the read loop. Safe to call more than once via closeOnce.
func (in *inbox) stop() {
	close(in.done)
}

// readError classifies a read loop failure.
func readError(closing bool, err error) error {
	if closing {
		return ErrPortClosed
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
