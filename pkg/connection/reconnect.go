package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/worthb0123/go-shared-fork/pkg/interaction"
	"github.com/worthb0123/go-shared-fork/pkg/log"
	"github.com/worthb0123/go-shared-fork/pkg/transport"
)

// DefaultDialTimeout bounds a single dial.
const DefaultDialTimeout = 10 * time.Second

// Supervisor errors.
var (
	ErrSupervisorClosed  = errors.New("supervisor closed")
	ErrAttemptsExhausted = errors.New("reconnect attempts exhausted")
	ErrNoDialer          = errors.New("dial function is nil")
	ErrAlreadyRunning    = errors.New("supervisor already running")
)

// State represents the supervisor's connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a dial or setup is in progress.
	StateConnecting

	// StateConnected indicates an established session.
	StateConnected

	// StateReconnecting indicates the supervisor is waiting out a backoff.
	StateReconnecting

	// StateClosed indicates the supervisor has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DialFunc opens a port to the producer.
type DialFunc func(ctx context.Context) (transport.Port, error)

// SetupFunc prepares a fresh client, typically by subscribing. The client
// is already receiving when SetupFunc runs, so requests may be made.
type SetupFunc func(ctx context.Context, c *interaction.Client) error

// Dialer returns a DialFunc for target: ws:// and wss:// URLs dial a
// websocket, anything else is dialed as a TCP stream address.
func Dialer(target string) DialFunc {
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		return func(ctx context.Context) (transport.Port, error) {
			return transport.DialWebSocket(ctx, target)
		}
	}
	return func(ctx context.Context) (transport.Port, error) {
		return transport.DialStream(ctx, target)
	}
}

// Config configures a Supervisor.
type Config struct {
	Backoff BackoffConfig

	// Client configures each session's client. ConnectionID is replaced
	// per session.
	Client interaction.Config

	// MaxAttempts is the number of consecutive failed attempts after which
	// Run gives up. Zero retries forever.
	MaxAttempts int

	// DialTimeout bounds each dial. Default 10s.
	DialTimeout time.Duration

	// Logger is optional.
	Logger *slog.Logger
}

// DefaultConfig returns the default supervisor configuration.
func DefaultConfig() Config {
	return Config{
		Backoff:     DefaultBackoffConfig(),
		Client:      interaction.DefaultConfig(),
		DialTimeout: DefaultDialTimeout,
	}
}

// Supervisor keeps one interaction.Client connected, redialing with
// backoff whenever the session ends.
type Supervisor struct {
	dial    DialFunc
	setup   SetupFunc
	cfg     Config
	backoff *Backoff
	logger  *slog.Logger

	mu            sync.RWMutex
	state         State
	client        *interaction.Client
	sessions      int
	running       bool
	closed        bool
	cancel        context.CancelFunc
	onStateChange func(oldState, newState State)
}

// NewSupervisor creates a supervisor. setup may be nil.
func NewSupervisor(dial DialFunc, setup SetupFunc, cfg Config) (*Supervisor, error) {
	if dial == nil {
		return nil, ErrNoDialer
	}
	if err := cfg.Client.Validate(); err != nil {
		return nil, err
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{
		dial:    dial,
		setup:   setup,
		cfg:     cfg,
		backoff: NewBackoffWithConfig(cfg.Backoff),
		logger:  logger,
	}, nil
}

// Run connects and reconnects until ctx ends, Close is called, or
// MaxAttempts consecutive attempts fail. It returns nil after Close.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSupervisorClosed
	}
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	failures := 0
	for {
		established, err := s.attempt(ctx)
		if ctx.Err() != nil {
			return s.stopped(ctx)
		}

		if established {
			failures = 0
			s.logger.Warn("session ended", "error", err)
		} else {
			failures++
			s.logger.Warn("connect attempt failed", "attempt", failures, "error", err)
		}
		if s.cfg.MaxAttempts > 0 && failures >= s.cfg.MaxAttempts {
			s.setState(StateDisconnected)
			return fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, failures, err)
		}

		s.setState(StateReconnecting)
		delay := s.backoff.Next()
		s.logger.Info("reconnecting", "delay", delay, "attempt", s.backoff.Attempts())

		select {
		case <-ctx.Done():
			return s.stopped(ctx)
		case <-time.After(delay):
		}
	}
}

// stopped settles the final state once ctx is done.
func (s *Supervisor) stopped(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil
	}
	s.setState(StateDisconnected)
	return ctx.Err()
}

// attempt dials, sets up, and runs one session. established reports
// whether setup succeeded.
func (s *Supervisor) attempt(ctx context.Context) (established bool, err error) {
	s.setState(StateConnecting)

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	port, err := s.dial(dctx)
	cancel()
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	cfg := s.cfg.Client
	cfg.ConnectionID = uuid.NewString()
	if cfg.Logger == nil {
		cfg.Logger = s.logger
	}
	if l, ok := port.(interface{ SetLogger(log.Logger, string) }); ok && cfg.ProtocolLogger != nil {
		l.SetLogger(cfg.ProtocolLogger, cfg.ConnectionID)
	}
	client := interaction.NewClient(port, cfg)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan error, 1)
	go func() { done <- client.Run(runCtx) }()

	if s.setup != nil {
		if err := s.setup(ctx, client); err != nil {
			_ = client.Disconnect()
			<-done
			return false, fmt.Errorf("setup: %w", err)
		}
	}

	s.backoff.Reset()
	s.mu.Lock()
	s.client = client
	s.sessions++
	s.mu.Unlock()
	s.setState(StateConnected)
	s.logger.Info("session established", "conn_id", cfg.ConnectionID)

	err = <-done

	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
	_ = client.Disconnect()
	return true, err
}

// Close stops Run and disconnects the current session.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	client := s.client
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		_ = client.Disconnect()
	}
	s.setState(StateClosed)
}

// Client returns the current session's client, or nil between sessions.
func (s *Supervisor) Client() *interaction.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Sessions returns how many sessions have been established.
func (s *Supervisor) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions
}

// BackoffAttempts returns the failed attempts since the last session.
func (s *Supervisor) BackoffAttempts() int {
	return s.backoff.Attempts()
}

// OnStateChange sets a callback for state changes. It runs on the
// supervisor's goroutine and must not block.
func (s *Supervisor) OnStateChange(fn func(oldState, newState State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = fn
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	old := s.state
	if old == state || (old == StateClosed && state != StateClosed) {
		s.mu.Unlock()
		return
	}
	s.state = state
	fn := s.onStateChange
	s.mu.Unlock()

	if fn != nil {
		fn(old, state)
	}
}
