package interaction

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// DefaultRequestTimeout is how long a get or inspect waits for its reply.
const DefaultRequestTimeout = 5 * time.Second

type reply struct {
	data json.RawMessage
	err  error
}

// Pending is a request awaiting its correlated reply.
type Pending struct {
	ID      uint64
	Created time.Time

	c        *Correlator
	ch       chan reply
	resolved  bool // guarded by c.mu
	abandoned bool // guarded by c.mu
}

// Correlator allocates request IDs and matches replies to waiting
// requests. Each request is settled exactly once: by its reply, by its
// timeout, or by its context, whichever comes first.
type Correlator struct {
	seq     atomic.Uint64
	timeout time.Duration

	mu      sync.Mutex
	pending map[uint64]*Pending
}

// NewCorrelator creates a correlator. timeout <= 0 selects the default.
func NewCorrelator(timeout time.Duration) *Correlator {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Correlator{
		timeout: timeout,
		pending: make(map[uint64]*Pending),
	}
}

// NextID returns the next request ID. IDs start at 0.
func (c *Correlator) NextID() uint64 {
	return c.seq.Add(1) - 1
}

// Register allocates an ID and records a pending request for it. The
// caller sends the request after registering so a fast reply is not lost.
func (c *Correlator) Register() *Pending {
	p := &Pending{
		ID:      c.NextID(),
		Created: time.Now(),
		c:       c,
		ch:      make(chan reply, 1),
	}
	c.mu.Lock()
	c.pending[p.ID] = p
	c.mu.Unlock()
	return p
}

// Resolve settles the pending request m replies to. It returns the
// request, or nil when m correlates with nothing pending.
func (c *Correlator) Resolve(m *wire.Message) *Pending {
	if !m.HasRequestID() {
		return nil
	}

	c.mu.Lock()
	p, ok := c.pending[m.ID()]
	if ok {
		delete(c.pending, m.ID())
		p.resolved = true
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}

	r := reply{data: m.Data}
	if m.Error != "" {
		r = reply{err: &RemoteError{RequestID: m.ID(), Message: m.Error}}
	}
	p.ch <- r
	return p
}

// Abandon forgets every pending request without settling it. Waiters
// return when their context ends or their timeout fires; a timed out
// waiter then fails with ErrAbandoned.
func (c *Correlator) Abandon() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.pending)
	for _, p := range c.pending {
		p.abandoned = true
	}
	c.pending = make(map[uint64]*Pending)
	return n
}

// Len returns the number of pending requests.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Timeout returns the request timeout.
func (c *Correlator) Timeout() time.Duration {
	return c.timeout
}

// Cancel withdraws the request, e.g. when sending it failed.
func (p *Pending) Cancel() {
	p.c.mu.Lock()
	if cur, ok := p.c.pending[p.ID]; ok && cur == p {
		delete(p.c.pending, p.ID)
	}
	p.c.mu.Unlock()
}

// Wait blocks until the reply arrives, ctx ends, or the timeout fires.
func (p *Pending) Wait(ctx context.Context) (json.RawMessage, error) {
	timer := time.NewTimer(p.c.timeout - time.Since(p.Created))
	defer timer.Stop()

	select {
	case r := <-p.ch:
		return r.data, r.err
	case <-ctx.Done():
		if r, ok := p.settle(); ok {
			return r.data, r.err
		}
		return nil, ctx.Err()
	case <-timer.C:
		if r, ok := p.settle(); ok {
			return r.data, r.err
		}
		if p.isAbandoned() {
			return nil, ErrAbandoned
		}
		return nil, ErrRequestTimeout
	}
}

func (p *Pending) isAbandoned() bool {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	return p.abandoned
}

// settle withdraws p unless a reply already won the race, in which case
// that reply is returned.
func (p *Pending) settle() (reply, bool) {
	p.c.mu.Lock()
	resolved := p.resolved
	if !resolved {
		if cur, ok := p.c.pending[p.ID]; ok && cur == p {
			delete(p.c.pending, p.ID)
		}
	}
	p.c.mu.Unlock()

	if !resolved {
		return reply{}, false
	}
	return <-p.ch, true
}
