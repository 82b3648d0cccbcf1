// Package interactive provides the interactive command-line interface
// for telemon-cli.
package interactive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/worthb0123/go-shared-fork/pkg/connection"
	"github.com/worthb0123/go-shared-fork/pkg/discovery"
	"github.com/worthb0123/go-shared-fork/pkg/interaction"
	"github.com/worthb0123/go-shared-fork/pkg/producer"
	"github.com/worthb0123/go-shared-fork/pkg/register"
	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// Default limits of the show and discover commands.
const (
	DefaultShowCount       = 20
	DefaultDiscoverTimeout = 3 * time.Second
)

// ErrNotConnected is returned by commands that need a live session.
var ErrNotConnected = errors.New("not connected")

// Connection is the session source of the shell. connection.Supervisor
// implements it.
type Connection interface {
	Client() *interaction.Client
	State() connection.State
	Sessions() int
}

var _ Connection = (*connection.Supervisor)(nil)

// Options configures a Shell.
type Options struct {
	// Out receives command output and echoed pushes.
	Out io.Writer

	// Browser serves the discover command. Nil disables it.
	Browser discovery.Browser
}

// watch is one channel the user subscribed to.
type watch struct {
	channel string
	fps     int
	echo    bool
	cancel  func()

	// store holds the registers of device channels.
	store *register.Store

	frames, bytes, pushes uint64
	last                  json.RawMessage
}

// Shell runs telemon-cli commands against a connection.
type Shell struct {
	conn    Connection
	browser discovery.Browser

	outMu sync.Mutex
	out   io.Writer

	mu      sync.Mutex
	watches map[string]*watch
}

// New creates a shell. Attach a connection before running commands that
// talk to the producer.
func New(opts Options) *Shell {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Shell{
		browser: opts.Browser,
		out:     out,
		watches: make(map[string]*watch),
	}
}

// Attach sets the connection the shell uses.
func (s *Shell) Attach(conn Connection) {
	s.conn = conn
}

// SetOutput replaces the output writer.
func (s *Shell) SetOutput(w io.Writer) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.out = w
}

// Write writes p to the output, serialized with command output.
func (s *Shell) Write(p []byte) (int, error) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.out.Write(p)
}

func (s *Shell) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// Resubscribe subscribes every watched channel on a new session. It is
// the connection.SetupFunc of the supervisor.
func (s *Shell) Resubscribe(_ context.Context, c *interaction.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range slices.Sorted(maps.Keys(s.watches)) {
		w := s.watches[name]
		if w.store != nil {
			w.store.Reset()
		}
		cancel, err := c.Subscribe(w.channel, w.fps, s.callback(w))
		if err != nil {
			return fmt.Errorf("resubscribe %s: %w", w.channel, err)
		}
		w.cancel = cancel
	}
	return nil
}

func (s *Shell) callback(w *watch) interaction.Callback {
	return func(p interaction.Payload) {
		s.mu.Lock()
		if p.Binary {
			w.frames++
			w.bytes += uint64(len(p.Frame))
		} else {
			w.pushes++
			if p.Type == wire.TypeData {
				w.last = p.Data
			}
		}
		store, echo := w.store, w.echo
		s.mu.Unlock()

		if store != nil {
			if err := store.HandlePayload(p); err != nil {
				s.printf("[%s] rejected payload: %v\n", w.channel, err)
			}
		}
		if echo && !p.Binary && p.Type == wire.TypeData {
			s.printf("[%s] %s\n", w.channel, p.Data)
		}
	}
}

func (s *Shell) client() (*interaction.Client, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	c := s.conn.Client()
	if c == nil {
		return nil, fmt.Errorf("%w (%s)", ErrNotConnected, s.conn.State())
	}
	return c, nil
}

// Run starts the interactive command loop on a readline prompt.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "telemon> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	s.SetOutput(rl.Stdout())

	s.printHelp()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			s.printf("Exiting...\n")
			cancel()
			return nil
		}

		if s.Execute(ctx, line) {
			s.printf("Exiting...\n")
			cancel()
			return nil
		}
	}
}

// Execute runs one command line and reports whether the user asked to quit.
func (s *Shell) Execute(ctx context.Context, line string) (quit bool) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "status", "st":
		s.cmdStatus()
	case "subscribe", "sub":
		err = s.cmdSubscribe(args)
	case "unsubscribe", "unsub":
		err = s.cmdUnsubscribe(args)
	case "subs", "ls":
		s.cmdList()
	case "show":
		err = s.cmdShow(args)
	case "get":
		err = s.cmdGet(ctx, args)
	case "publish", "pub":
		err = s.cmdPublish(line, args)
	case "inspect", "i":
		err = s.cmdInspect(ctx)
	case "discover", "d":
		err = s.cmdDiscover(ctx, args)
	case "quit", "exit", "q":
		return true
	default:
		s.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		s.printf("Error: %v\n", err)
	}
	return false
}

func (s *Shell) printHelp() {
	s.printf(`
Telemetry Commands:
  Subscriptions:
    sub <channel> [fps] [-q]  - Subscribe (device_N channels keep registers; -q mutes pushes)
    unsub <channel>           - Unsubscribe
    subs                      - List subscriptions with counters
    show <channel> [start] [count] - Print registers of a device subscription

  Channels:
    get <channel>             - Fetch a channel's stored data
    pub <channel> <json>      - Publish data (non-JSON text is sent as a string)
    inspect                   - Show producer channels and subscriber counts

  Other:
    status                    - Show connection status
    discover [timeout]        - Find producers on the local network
    help                      - Show this help
    quit                      - Exit
`)
}

func (s *Shell) cmdStatus() {
	if s.conn == nil {
		s.printf("Connection: none\n")
		return
	}
	s.printf("Connection: %s (sessions: %d)\n", s.conn.State(), s.conn.Sessions())
	if c := s.conn.Client(); c != nil {
		st := c.Stats()
		s.printf("  Client:    %s\n", c.ConnectionID())
		s.printf("  Sent:      %d\n", st.Sent)
		s.printf("  Received:  %d (malformed: %d)\n", st.Received, st.Malformed)
		s.printf("  Pending:   %d\n", c.PendingRequests())
		if st.CallbackErrors > 0 {
			s.printf("  Callback errors: %d\n", st.CallbackErrors)
		}
	}

	s.mu.Lock()
	n := len(s.watches)
	s.mu.Unlock()
	s.printf("Subscriptions: %d\n", n)
}

func (s *Shell) cmdSubscribe(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: sub <channel> [fps] [-q]")
	}
	w := &watch{channel: args[0], echo: true}
	for _, a := range args[1:] {
		if a == "-q" {
			w.echo = false
			continue
		}
		fps, err := strconv.Atoi(a)
		if err != nil || fps < 0 {
			return fmt.Errorf("invalid fps %q", a)
		}
		w.fps = fps
	}
	if _, ok := producer.ParseDeviceChannel(w.channel); ok {
		w.store = register.NewStore(nil)
	}

	s.mu.Lock()
	if old, ok := s.watches[w.channel]; ok && old.cancel != nil {
		old.cancel()
	}
	s.watches[w.channel] = w
	s.mu.Unlock()

	c, err := s.client()
	if err != nil {
		s.printf("Queued %s until connected\n", w.channel)
		return nil
	}
	cancel, err := c.Subscribe(w.channel, w.fps, s.callback(w))
	if err != nil {
		return err
	}
	s.mu.Lock()
	w.cancel = cancel
	s.mu.Unlock()
	s.printf("Subscribed to %s\n", w.channel)
	return nil
}

func (s *Shell) cmdUnsubscribe(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: unsub <channel>")
	}
	s.mu.Lock()
	w, ok := s.watches[args[0]]
	delete(s.watches, args[0])
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("not subscribed to %s", args[0])
	}
	if w.cancel != nil {
		w.cancel()
	}
	s.printf("Unsubscribed from %s\n", args[0])
	return nil
}

func (s *Shell) cmdList() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.watches) == 0 {
		s.printf("No subscriptions\n")
		return
	}
	s.printf("%-20s %5s %8s %10s %8s %10s\n", "CHANNEL", "FPS", "FRAMES", "BYTES", "PUSHES", "REGISTERS")
	for _, name := range slices.Sorted(maps.Keys(s.watches)) {
		w := s.watches[name]
		regs := "-"
		if w.store != nil {
			regs = strconv.Itoa(w.store.Len())
		}
		s.printf("%-20s %5d %8d %10d %8d %10s\n", w.channel, w.fps, w.frames, w.bytes, w.pushes, regs)
	}
}

func (s *Shell) cmdShow(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: show <channel> [start] [count]")
	}
	s.mu.Lock()
	w, ok := s.watches[args[0]]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("not subscribed to %s", args[0])
	}
	if w.store == nil {
		s.mu.Lock()
		last := w.last
		s.mu.Unlock()
		if last == nil {
			s.printf("%s: no data yet\n", w.channel)
		} else {
			s.printf("%s: %s\n", w.channel, last)
		}
		return nil
	}

	start, count := 0, DefaultShowCount
	var err error
	if len(args) > 1 {
		if start, err = strconv.Atoi(args[1]); err != nil || start < 0 {
			return fmt.Errorf("invalid start %q", args[1])
		}
	}
	if len(args) > 2 {
		if count, err = strconv.Atoi(args[2]); err != nil || count <= 0 {
			return fmt.Errorf("invalid count %q", args[2])
		}
	}

	n := w.store.Len()
	if n == 0 {
		s.printf("%s: no registers yet\n", w.channel)
		return nil
	}
	s.printf("%6s %5s %10s %10s %10s\n", "INDEX", "RAW", "VALUE", "MIN", "MAX")
	for i := start; i < min(start+count, n); i++ {
		raw, _ := w.store.Raw(i)
		scaled, _ := w.store.Scaled(i)
		lo, hi := "-", "-"
		if cfg := w.store.Config(i); cfg != nil {
			lo = strconv.FormatFloat(cfg.DisplayMin, 'f', -1, 64)
			hi = strconv.FormatFloat(cfg.DisplayMax, 'f', -1, 64)
		}
		s.printf("%6d %5d %10.1f %10s %10s\n", i, raw, scaled, lo, hi)
	}
	s.printf("(%d of %d registers)\n", min(start+count, n)-min(start, n), n)
	return nil
}

func (s *Shell) cmdGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get <channel>")
	}
	c, err := s.client()
	if err != nil {
		return err
	}
	data, err := c.Get(ctx, args[0])
	if err != nil {
		return err
	}
	s.printf("%s = %s\n", args[0], data)
	return nil
}

func (s *Shell) cmdPublish(line string, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: pub <channel> <json>")
	}
	// The payload is the rest of the line, spacing included.
	rest := strings.TrimSpace(line)
	for range 2 {
		_, rest, _ = strings.Cut(rest, " ")
		rest = strings.TrimLeft(rest, " \t")
	}

	c, err := s.client()
	if err != nil {
		return err
	}
	var data any = rest
	if json.Valid([]byte(rest)) {
		data = json.RawMessage(rest)
	}
	if err := c.Publish(args[0], data); err != nil {
		return err
	}
	s.printf("Published to %s\n", args[0])
	return nil
}

func (s *Shell) cmdInspect(ctx context.Context) error {
	c, err := s.client()
	if err != nil {
		return err
	}
	r, err := c.InspectReport(ctx)
	if err != nil {
		return err
	}

	s.printf("Channels: %d  Stored: %d\n", r.TotalChannels, r.TotalData)
	names := slices.Collect(maps.Keys(r.Channels.SubscriberCounts))
	for name := range r.Channels.DataStore {
		if _, ok := r.Channels.SubscriberCounts[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		line := fmt.Sprintf("  %-20s subscribers: %d", name, r.Channels.SubscriberCounts[name])
		if data, ok := r.Channels.DataStore[name]; ok {
			line += "  data: " + truncate(data, 60)
		}
		s.printf("%s\n", line)
	}
	return nil
}

func (s *Shell) cmdDiscover(ctx context.Context, args []string) error {
	if s.browser == nil {
		return errors.New("discovery disabled")
	}
	timeout := DefaultDiscoverTimeout
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid timeout %q", args[0])
		}
		timeout = d
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	results, err := s.browser.Browse(ctx)
	if err != nil {
		return err
	}

	s.printf("Browsing for %s...\n", timeout)
	found := 0
	for {
		select {
		case svc, ok := <-results:
			if !ok {
				s.printf("Found %d producer(s)\n", found)
				return nil
			}
			found++
			s.printf("  %s\n", svc)
			if addr := svc.StreamAddr(); addr != "" {
				s.printf("    stream: %s\n", addr)
			}
		case <-ctx.Done():
			s.printf("Found %d producer(s)\n", found)
			return nil
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
