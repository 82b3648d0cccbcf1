package viewport

import (
	"sync"
	"time"
)

// DefaultFPS is the frame rate a Scheduler targets when none is given.
const DefaultFPS = 60

// FrameRequester schedules a frame callback with at most one pending.
type FrameRequester interface {
	// Request schedules the frame unless one is already pending or the
	// requester was cancelled. It reports whether a frame was scheduled.
	Request() bool

	// Cancel drops any pending frame and ignores later requests.
	Cancel()
}

// RequesterFactory binds a FrameRequester to a frame callback.
type RequesterFactory func(frame func()) FrameRequester

// Scheduler is a timer-driven FrameRequester. Frames are spaced at least
// one interval apart; a request made sooner waits for the remainder.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	frame    func()
	timer    *time.Timer
	last     time.Time
	pending  bool
	closed   bool
	frames   uint64
}

var _ FrameRequester = (*Scheduler)(nil)

// NewScheduler creates a scheduler running frame at up to fps frames per
// second. fps <= 0 selects DefaultFPS.
func NewScheduler(fps int, frame func()) *Scheduler {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Scheduler{
		interval: time.Second / time.Duration(fps),
		frame:    frame,
	}
}

// SchedulerFactory returns a RequesterFactory building Schedulers at fps.
func SchedulerFactory(fps int) RequesterFactory {
	return func(frame func()) FrameRequester {
		return NewScheduler(fps, frame)
	}
}

// Interval returns the minimum spacing between frames.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Frames returns how many frames have run.
func (s *Scheduler) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Request implements FrameRequester.
func (s *Scheduler) Request() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.pending {
		return false
	}
	s.pending = true

	delay := s.interval - time.Since(s.last)
	if delay < 0 {
		delay = 0
	}
	s.timer = time.AfterFunc(delay, s.fire)
	return true
}

// Cancel implements FrameRequester.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.pending = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.closed || !s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.timer = nil
	s.last = time.Now()
	s.frames++
	s.mu.Unlock()

	// The frame may request the next one.
	s.frame()
}

// ManualScheduler is a FrameRequester driven by explicit Step calls.
type ManualScheduler struct {
	mu       sync.Mutex
	frame    func()
	pending  bool
	closed   bool
	requests int
}

var _ FrameRequester = (*ManualScheduler)(nil)

// NewManualScheduler creates a manual scheduler for frame.
func NewManualScheduler(frame func()) *ManualScheduler {
	return &ManualScheduler{frame: frame}
}

// Request implements FrameRequester.
func (m *ManualScheduler) Request() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.pending {
		return false
	}
	m.pending = true
	m.requests++
	return true
}

// Cancel implements FrameRequester.
func (m *ManualScheduler) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.pending = false
}

// Pending reports whether a frame is waiting.
func (m *ManualScheduler) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Requests returns how many frames were scheduled.
func (m *ManualScheduler) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// Step runs the pending frame, if any, and reports whether one ran.
func (m *ManualScheduler) Step() bool {
	m.mu.Lock()
	if !m.pending {
		m.mu.Unlock()
		return false
	}
	m.pending = false
	m.mu.Unlock()

	m.frame()
	return true
}

// Drain steps until no frame is pending or limit frames have run, and
// returns the number of frames run.
func (m *ManualScheduler) Drain(limit int) int {
	n := 0
	for n < limit && m.Step() {
		n++
	}
	return n
}
