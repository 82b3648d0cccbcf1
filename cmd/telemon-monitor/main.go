// Command telemon-monitor shows the registers of one producer device in
// the terminal.
//
// The view is virtualized: only the rows (or grid cells) on screen are
// painted, so devices with tens of thousands of registers scroll smoothly.
// The connection is supervised and resubscribes after every reconnect.
//
// Usage:
//
//	telemon-monitor [flags] [ws://host:port/ws | host:port]
//
// Flags:
//
//	-device int         Device to show (default 1)
//	-fps int            Subscription rate, 0 for the producer default (default 10)
//	-render-fps int     Repaint rate (default 30)
//	-view string        Initial view: table, grid (default "table")
//	-instance string    mDNS instance to connect to when no address is given
//	-discover duration  mDNS discovery timeout (default 5s)
//	-log-file string    Write operational logs to this file
//	-protocol-log string  Protocol event log file
//
// Examples:
//
//	# Connect to the first producer found over mDNS
//	telemon-monitor
//
//	# Device 2 of a known producer in grid view
//	telemon-monitor -device 2 -view grid ws://10.0.0.5:8080/ws
//
//	# Framed TCP stream
//	telemon-monitor 10.0.0.5:9000
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/worthb0123/go-shared-fork/pkg/connection"
	"github.com/worthb0123/go-shared-fork/pkg/discovery"
	"github.com/worthb0123/go-shared-fork/pkg/log"
	"github.com/worthb0123/go-shared-fork/pkg/register"
)

var (
	device      int
	fps         int
	renderFPS   int
	view        string
	instance    string
	discoverFor time.Duration
	logFile     string
	protocolLog string
)

func init() {
	flag.IntVar(&device, "device", 1, "Device to show")
	flag.IntVar(&fps, "fps", 10, "Subscription rate, 0 for the producer default")
	flag.IntVar(&renderFPS, "render-fps", 30, "Repaint rate")
	flag.StringVar(&view, "view", "table", "Initial view: table, grid")
	flag.StringVar(&instance, "instance", "", "mDNS instance to connect to when no address is given")
	flag.DurationVar(&discoverFor, "discover", 5*time.Second, "mDNS discovery timeout")
	flag.StringVar(&logFile, "log-file", "", "Write operational logs to this file")
	flag.StringVar(&protocolLog, "protocol-log", "", "Protocol event log file")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	mode, err := parseView(view)
	if err != nil {
		return err
	}
	if device < 1 {
		return fmt.Errorf("device must be at least 1, got %d", device)
	}

	// The terminal belongs to the UI; logs go to a file or nowhere.
	logger := slog.New(slog.DiscardHandler)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target := flag.Arg(0)
	if target == "" {
		target, err = discover(ctx, instance, discoverFor, logger)
		if err != nil {
			return err
		}
	}

	cfg := connection.DefaultConfig()
	cfg.Logger = logger
	cfg.Client.Logger = logger
	if protocolLog != "" {
		fl, err := log.NewFileLogger(protocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		cfg.Client.ProtocolLogger = fl
	}

	store := register.NewStore(logger)
	feed := newDeviceFeed(store, device, fps, logger)
	sup, err := connection.NewSupervisor(connection.Dialer(target), feed.setup, cfg)
	if err != nil {
		return err
	}

	m := newMonitor(store, feed, target, mode, renderFPS, logger)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	m.send = p.Send
	feed.onUpdate = m.sync
	m.connState = sup.State

	supErr := make(chan error, 1)
	go func() { supErr <- sup.Run(ctx) }()

	_, err = p.Run()
	sup.Close()
	if runErr := <-supErr; runErr != nil && ctx.Err() == nil {
		logger.Warn("connection supervisor stopped", "error", runErr)
	}
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func parseView(s string) (viewMode, error) {
	switch s {
	case "table", "t":
		return modeTable, nil
	case "grid", "g":
		return modeGrid, nil
	default:
		return 0, fmt.Errorf("unknown view %q (valid: table, grid)", s)
	}
}

// discover returns the websocket URL of the named producer, or of the
// first one found when name is empty.
func discover(ctx context.Context, name string, timeout time.Duration, logger *slog.Logger) (string, error) {
	bcfg := discovery.DefaultBrowserConfig()
	bcfg.BrowseTimeout = timeout
	bcfg.Logger = logger
	browser := discovery.NewMDNSBrowser(bcfg)
	defer browser.Stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Looking for producers on the local network...\n")
	var svc *discovery.ProducerService
	var err error
	if name != "" {
		svc, err = browser.Find(ctx, name)
	} else {
		svc, err = firstService(ctx, browser)
	}
	if err != nil {
		return "", fmt.Errorf("discover producer: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Found %s\n", svc)
	return svc.WebSocketURL(), nil
}

func firstService(ctx context.Context, b discovery.Browser) (*discovery.ProducerService, error) {
	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case svc, ok := <-results:
		if !ok {
			return nil, discovery.ErrNotFound
		}
		return svc, nil
	case <-ctx.Done():
		return nil, discovery.ErrNotFound
	}
}
