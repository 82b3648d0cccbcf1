package producer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/worthb0123/go-shared-fork/pkg/log"
	"github.com/worthb0123/go-shared-fork/pkg/transport"
	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// Session is one connected consumer port.
type Session struct {
	id      string
	port    transport.Port
	remote  string
	created time.Time
	logger  *slog.Logger
	plog    log.Logger

	mu     sync.Mutex
	queue  []transport.Message
	signal chan struct{}
	done   chan struct{}
	closed bool
}

func newSession(id string, port transport.Port, logger *slog.Logger, plog log.Logger) *Session {
	s := &Session{
		id:      id,
		port:    port,
		remote:  "unknown",
		created: time.Now(),
		logger:  logger,
		plog:    plog,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if a, ok := port.(transport.Addresser); ok {
		s.remote = a.RemoteAddr()
	}
	return s
}

// ID returns the session's connection ID.
func (s *Session) ID() string {
	return s.id
}

// RemoteAddr returns the peer address, if the port knows it.
func (s *Session) RemoteAddr() string {
	return s.remote
}

// Pending returns the number of queued outbound messages.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// push queues m unconditionally. It returns false once the session is closed.
func (s *Session) push(m transport.Message) bool {
	return s.offer(m, 0)
}

// offer queues m unless more than limit messages are waiting. limit 0
// means no limit.
func (s *Session) offer(m transport.Message, limit int) bool {
	s.mu.Lock()
	if s.closed || (limit > 0 && len(s.queue) >= limit) {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, m)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

// pushMessage encodes and queues a control envelope.
func (s *Session) pushMessage(m wire.Message) bool {
	data, err := wire.Encode(m)
	if err != nil {
		s.logger.Error("encode reply", "type", m.Type, "error", err)
		return false
	}
	if !s.push(transport.Text(data)) {
		return false
	}
	s.plog.Log(producerEvent(log.NewMessageEvent(s.id, log.DirectionOut, &m)))
	return true
}

// writeLoop sends queued messages in order until the session closes or
// the port fails.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.signal:
		case <-s.done:
			return
		}

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, m := range batch {
			if err := s.port.Send(m); err != nil {
				s.logger.Debug("send failed", "error", err)
				s.close()
				return
			}
		}
	}
}

// close stops the writer and releases the port.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	close(s.done)
	_ = s.port.Close()
}

func producerEvent(e log.Event) log.Event {
	e.LocalRole = log.RoleProducer
	return e
}
