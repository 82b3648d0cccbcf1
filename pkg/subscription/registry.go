package subscription

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry errors.
var (
	ErrEmptyChannel     = errors.New("empty channel name")
	ErrNilCallback      = errors.New("nil callback")
	ErrNotSubscribed    = errors.New("channel not subscribed")
	ErrCallbackNotFound = errors.New("callback not found")
)

// Callback receives payloads for a channel.
type Callback func(Payload)

// Handle identifies one registered callback.
type Handle uint64

var handleSeq atomic.Uint64

func nextHandle() Handle {
	return Handle(handleSeq.Add(1))
}

type subscriber struct {
	handle Handle
	fn     Callback
}

type entry struct {
	channel     string
	fps         int
	subscribers []subscriber
}

// Registry maps channels to their callbacks. It is safe for concurrent
// use. Callbacks are never invoked while the registry lock is held.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Add registers fn for channel. first is true when the channel had no
// entry before. fps replaces the entry's requested rate.
func (r *Registry) Add(channel string, fps int, fn Callback) (h Handle, first bool, err error) {
	if channel == "" {
		return 0, false, ErrEmptyChannel
	}
	if fn == nil {
		return 0, false, ErrNilCallback
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[channel]
	if !ok {
		e = &entry{channel: channel}
		r.entries[channel] = e
	}
	e.fps = fps

	h = nextHandle()
	e.subscribers = append(e.subscribers, subscriber{handle: h, fn: fn})
	return h, !ok, nil
}

// Remove unregisters one callback. last is true when it was the channel's
// final callback; the entry is then gone.
func (r *Registry) Remove(channel string, h Handle) (last bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[channel]
	if !ok {
		return false, ErrNotSubscribed
	}
	for i, s := range e.subscribers {
		if s.handle == h {
			e.subscribers = append(e.subscribers[:i:i], e.subscribers[i+1:]...)
			if len(e.subscribers) == 0 {
				delete(r.entries, channel)
				return true, nil
			}
			return false, nil
		}
	}
	return false, ErrCallbackNotFound
}

// Drop removes channel and all its callbacks. It reports whether an entry
// existed.
func (r *Registry) Drop(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[channel]; !ok {
		return false
	}
	delete(r.entries, channel)
	return true
}

// Callbacks returns a snapshot of channel's callbacks in registration order.
func (r *Registry) Callbacks(channel string) []Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[channel]
	if !ok {
		return nil
	}
	return e.callbacks(nil)
}

// AllCallbacks returns a snapshot of every callback of every channel,
// ordered by channel name.
func (r *Registry) AllCallbacks() []Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Callback
	for _, ch := range r.sortedChannels() {
		out = r.entries[ch].callbacks(out)
	}
	return out
}

// Has reports whether channel is subscribed.
func (r *Registry) Has(channel string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[channel]
	return ok
}

// FPS returns the requested rate for channel.
func (r *Registry) FPS(channel string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[channel]
	if !ok {
		return 0, false
	}
	return e.fps, true
}

// Channels returns the subscribed channels, sorted.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedChannels()
}

// Count returns the number of subscribed channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ClearAll removes every entry (e.g., on disconnect).
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry)
}

func (r *Registry) sortedChannels() []string {
	chs := make([]string, 0, len(r.entries))
	for ch := range r.entries {
		chs = append(chs, ch)
	}
	sort.Strings(chs)
	return chs
}

func (e *entry) callbacks(out []Callback) []Callback {
	for _, s := range e.subscribers {
		out = append(out, s.fn)
	}
	return out
}
