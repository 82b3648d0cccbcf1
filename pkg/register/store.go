package register

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/worthb0123/go-shared-fork/pkg/delta"
	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// Store owns the raw and scaled register arrays of one data source.
// It is safe for concurrent use: message handlers mutate it while a
// render loop reads it through View.
type Store struct {
	mu      sync.RWMutex
	raw     []uint8
	scaled  []float64
	configs []*wire.RegisterConfig

	generation atomic.Uint64
	dropped    atomic.Uint64

	logger *slog.Logger
}

// NewStore creates an empty store. logger may be nil.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// NewStoreSize creates a store with n zero-valued registers.
func NewStoreSize(n int, logger *slog.Logger) *Store {
	s := NewStore(logger)
	s.grow(n)
	return s
}

// Generation returns a counter that increases on every applied change.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Dropped returns the number of frames rejected as malformed.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// Len returns the number of registers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.raw)
}

// ApplyFrame applies a binary delta frame. A malformed frame is rejected
// as a whole and leaves the store unchanged.
func (s *Store) ApplyFrame(frame []byte) error {
	records, err := delta.Parse(frame)
	if err != nil {
		s.dropped.Add(1)
		if s.logger != nil {
			s.logger.Warn("dropping delta frame", "size", len(frame), "error", err)
		}
		return fmt.Errorf("apply frame: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, r := range records {
		s.grow(r.End())
		for i, v := range r.Values {
			idx := r.Start + i
			s.raw[idx] = v
			s.scaled[idx] = s.scale(idx, v)
		}
	}
	s.mu.Unlock()

	s.generation.Add(1)
	return nil
}

// SetConfigs replaces the config array and rescales every buffered raw value.
func (s *Store) SetConfigs(configs []*wire.RegisterConfig) {
	s.mu.Lock()
	s.configs = configs
	s.grow(len(configs))
	for i, v := range s.raw {
		s.scaled[i] = s.scale(i, v)
	}
	s.mu.Unlock()

	s.generation.Add(1)
}

// Reset drops all values and configs, as on a data source change.
func (s *Store) Reset() {
	s.mu.Lock()
	s.raw = nil
	s.scaled = nil
	s.configs = nil
	s.mu.Unlock()

	s.generation.Add(1)
}

// Raw returns the raw value at index, or false when out of range.
func (s *Store) Raw(index int) (uint8, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.raw) {
		return 0, false
	}
	return s.raw[index], true
}

// Scaled returns the scaled value at index, or false when out of range.
func (s *Store) Scaled(index int) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.scaled) {
		return 0, false
	}
	return s.scaled[index], true
}

// Config returns the config at index, or nil when none exists.
func (s *Store) Config(index int) *wire.RegisterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config(index)
}

// Snapshot copies the raw and scaled arrays.
func (s *Store) Snapshot() (raw []uint8, scaled []float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uint8(nil), s.raw...), append([]float64(nil), s.scaled...)
}

// View is a read-only look at the store while its read lock is held.
type View struct {
	Raw     []uint8
	Scaled  []float64
	Configs []*wire.RegisterConfig
}

// Config returns the config at index, or nil.
func (v View) Config(index int) *wire.RegisterConfig {
	if index < 0 || index >= len(v.Configs) {
		return nil
	}
	return v.Configs[index]
}

// Len returns the number of registers in the view.
func (v View) Len() int {
	return len(v.Raw)
}

// View calls fn with the current arrays under the read lock. fn must not
// retain the slices or call back into the store.
func (s *Store) View(fn func(View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(View{Raw: s.raw, Scaled: s.scaled, Configs: s.configs})
}

// grow extends both arrays to n entries. Caller holds the write lock.
func (s *Store) grow(n int) {
	if n <= len(s.raw) {
		return
	}
	s.raw = append(s.raw, make([]uint8, n-len(s.raw))...)
	s.scaled = append(s.scaled, make([]float64, n-len(s.scaled))...)
}

func (s *Store) config(index int) *wire.RegisterConfig {
	if index < 0 || index >= len(s.configs) {
		return nil
	}
	return s.configs[index]
}

func (s *Store) scale(index int, raw uint8) float64 {
	if c := s.config(index); c != nil {
		return c.Apply(raw)
	}
	return float64(raw)
}
