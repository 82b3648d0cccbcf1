// Command telemon-cli is an interactive telemetry client.
//
// It keeps a supervised connection to a producer and offers a prompt to
// subscribe to channels, read and publish channel data, inspect the
// producer and browse the local network for producers. Subscriptions
// survive reconnects.
//
// Usage:
//
//	telemon-cli [flags] [ws://host:port/ws | host:port]
//
// Flags:
//
//	-timeout duration     Request timeout for get and inspect (default 5s)
//	-log-level string     Log level: debug, info, warn, error (default "warn")
//	-protocol-log string  Protocol event log file
//	-max-attempts int     Give up after this many failed connects, 0 retries forever
//
// Examples:
//
//	# Connect over websocket
//	telemon-cli ws://localhost:8080/ws
//
//	# Framed TCP stream with a protocol log
//	telemon-cli -protocol-log cli.log localhost:9000
//
//	# No producer yet: only discover works until one is connected
//	telemon-cli
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

	"github.com/worthb0123/go-shared-fork/cmd/telemon-cli/interactive"
	"github.com/worthb0123/go-shared-fork/pkg/connection"
	"github.com/worthb0123/go-shared-fork/pkg/discovery"
	"github.com/worthb0123/go-shared-fork/pkg/interaction"
	"github.com/worthb0123/go-shared-fork/pkg/log"
)

var (
	timeout     time.Duration
	logLevel    string
	protocolLog string
	maxAttempts int
)

func init() {
	flag.DurationVar(&timeout, "timeout", interaction.DefaultRequestTimeout, "Request timeout for get and inspect")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flag.StringVar(&protocolLog, "protocol-log", "", "Protocol event log file")
	flag.IntVar(&maxAttempts, "max-attempts", 0, "Give up after this many failed connects, 0 retries forever")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	browser := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
	defer browser.Stop()
	shell := interactive.New(interactive.Options{Out: os.Stdout, Browser: browser})

	// Logs share the prompt's writer so they do not garble the input line.
	logger := slog.New(slog.NewTextHandler(shell, &slog.HandlerOptions{Level: level}))

	if target := flag.Arg(0); target != "" {
		cfg := connection.DefaultConfig()
		cfg.MaxAttempts = maxAttempts
		cfg.Logger = logger
		cfg.Client.Logger = logger
		cfg.Client.RequestTimeout = timeout
		if protocolLog != "" {
			fl, err := log.NewFileLogger(protocolLog)
			if err != nil {
				return fmt.Errorf("open protocol log: %w", err)
			}
			defer fl.Close()
			cfg.Client.ProtocolLogger = fl
		}

		sup, err := connection.NewSupervisor(connection.Dialer(target), shell.Resubscribe, cfg)
		if err != nil {
			return err
		}
		shell.Attach(sup)
		defer sup.Close()

		go func() {
			if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("connection lost for good", "target", target, "error", err)
			}
		}()
		fmt.Printf("Connecting to %s\n", target)
	}

	return shell.Run(ctx, cancel)
}
