// Command telemon-producer is the reference telemetry producer.
//
// It simulates devices whose registers drift every physics tick and serves
// them over websocket and framed TCP streams:
//   - device channels (device_1, device_2, ...) with binary deltas
//   - JSON channels written by clients or bridged from MQTT
//   - mDNS advertising for zero-configuration clients
//   - an optional protocol log for telemon-log
//
// Usage:
//
//	telemon-producer [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-listen string        HTTP listen address (default ":8080")
//	-ws-path string       Websocket endpoint path (default "/ws")
//	-stream string        Framed TCP listen address, empty to disable
//	-devices int          Simulated device count (default 2)
//	-registers int        Registers per device (default 10000)
//	-max-fps int          Highest subscription rate (default 10)
//	-seed uint            Simulation seed, 0 seeds from the clock
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-log-format string    Log format: text, json (default "text")
//	-protocol-log string  Protocol event log file
//	-mdns                 Advertise the producer over mDNS
//	-instance string      mDNS instance name (default "telemon-producer")
//	-mqtt string          MQTT broker URL, e.g. tcp://localhost:1883
//
// Examples:
//
//	# Two devices of 10000 registers on :8080
//	telemon-producer
//
//	# Small simulation, advertised, with a protocol log
//	telemon-producer -devices 4 -registers 500 -mdns -protocol-log producer.log
//
//	# Bridge MQTT topics configured in a file
//	telemon-producer -config producer.yaml -mqtt tcp://broker:1883
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/worthb0123/go-shared-fork/pkg/discovery"
	"github.com/worthb0123/go-shared-fork/pkg/feed"
	"github.com/worthb0123/go-shared-fork/pkg/log"
	"github.com/worthb0123/go-shared-fork/pkg/producer"
)

const shutdownTimeout = 5 * time.Second

var (
	configFile string
	flags      = defaultConfig()
)

func init() {
	flag.StringVar(&configFile, "config", "", "YAML configuration file")
	flag.StringVar(&flags.Listen, "listen", flags.Listen, "HTTP listen address")
	flag.StringVar(&flags.WebSocketPath, "ws-path", flags.WebSocketPath, "Websocket endpoint path")
	flag.StringVar(&flags.Stream, "stream", "", "Framed TCP listen address, empty to disable")
	flag.IntVar(&flags.Devices, "devices", flags.Devices, "Simulated device count")
	flag.IntVar(&flags.Registers, "registers", flags.Registers, "Registers per device")
	flag.IntVar(&flags.MaxFPS, "max-fps", flags.MaxFPS, "Highest subscription rate")
	flag.Uint64Var(&flags.Seed, "seed", 0, "Simulation seed, 0 seeds from the clock")
	flag.StringVar(&flags.Log.Level, "log-level", flags.Log.Level, "Log level: debug, info, warn, error")
	flag.StringVar(&flags.Log.Format, "log-format", flags.Log.Format, "Log format: text, json")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Protocol event log file")
	flag.BoolVar(&flags.MDNS.Enabled, "mdns", false, "Advertise the producer over mDNS")
	flag.StringVar(&flags.MDNS.Instance, "instance", flags.MDNS.Instance, "mDNS instance name")
	flag.StringVar(&flags.MQTT.URL, "mqtt", "", "MQTT broker URL")
}

func main() {
	flag.Parse()

	cfg, err := resolveConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("producer failed", "error", err)
		os.Exit(1)
	}
	logger.Info("producer stopped")
}

// resolveConfig merges the config file with the flags set on the command
// line and validates the result.
func resolveConfig() (Config, error) {
	cfg := flags
	if configFile != "" {
		var err error
		if cfg, err = loadConfig(configFile); err != nil {
			return cfg, err
		}
		flag.Visit(func(f *flag.Flag) { overrideFlag(&cfg, f.Name) })
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overrideFlag copies one explicitly set flag into cfg.
func overrideFlag(cfg *Config, name string) {
	switch name {
	case "listen":
		cfg.Listen = flags.Listen
	case "ws-path":
		cfg.WebSocketPath = flags.WebSocketPath
	case "stream":
		cfg.Stream = flags.Stream
	case "devices":
		cfg.Devices = flags.Devices
	case "registers":
		cfg.Registers = flags.Registers
	case "max-fps":
		cfg.MaxFPS = flags.MaxFPS
	case "seed":
		cfg.Seed = flags.Seed
	case "log-level":
		cfg.Log.Level = flags.Log.Level
	case "log-format":
		cfg.Log.Format = flags.Log.Format
	case "protocol-log":
		cfg.ProtocolLog = flags.ProtocolLog
	case "mdns":
		cfg.MDNS.Enabled = flags.MDNS.Enabled
	case "instance":
		cfg.MDNS.Instance = flags.MDNS.Instance
	case "mqtt":
		cfg.MQTT.URL = flags.MQTT.URL
	}
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	pc := cfg.producerConfig()
	pc.Logger = logger

	if cfg.ProtocolLog != "" {
		fl, err := log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer func() {
			if n := fl.Errors(); n > 0 {
				logger.Warn("protocol log write errors", "count", n)
			}
			_ = fl.Close()
		}()
		pc.ProtocolLogger = log.NewMultiLogger(fl, log.NewSlogAdapter(logger))
		logger.Info("protocol logging enabled", "path", cfg.ProtocolLog)
	}

	hub, err := producer.NewHub(pc)
	if err != nil {
		return err
	}
	defer hub.Close()

	if cfg.MQTT.URL != "" {
		bc := cfg.brokerConfig()
		bc.Logger = logger
		broker, err := feed.Dial(ctx, bc)
		if err != nil {
			return err
		}
		defer broker.Close(250 * time.Millisecond)

		f, err := feed.New(broker, hub, cfg.MQTT.Routes, logger)
		if err != nil {
			return err
		}
		if err := f.Start(); err != nil {
			return err
		}
		defer func() { _ = f.Stop() }()
	}

	httpLn, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	defer func() { _ = httpLn.Close() }()

	var streamLn net.Listener
	var streamPort uint16
	if cfg.Stream != "" {
		if streamLn, err = net.Listen("tcp", cfg.Stream); err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Stream, err)
		}
		streamPort = listenerPort(streamLn)
	}

	if cfg.MDNS.Enabled {
		adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Interface: cfg.MDNS.Interface,
			TTL:       discovery.DefaultTTL,
			Logger:    logger,
		})
		info := &discovery.ProducerInfo{
			Instance:      cfg.MDNS.Instance,
			Port:          listenerPort(httpLn),
			WebSocketPath: cfg.WebSocketPath,
			StreamPort:    streamPort,
			Devices:       cfg.Devices,
			Registers:     cfg.Registers,
		}
		if err := adv.Advertise(ctx, info); err != nil {
			logger.Warn("mDNS advertising failed", "error", err)
		} else {
			defer func() { _ = adv.Stop() }()
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(ctx) })

	mux := http.NewServeMux()
	mux.Handle(cfg.WebSocketPath, hub.Handler(ctx))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	g.Go(func() error {
		logger.Info("websocket endpoint listening", "addr", httpLn.Addr().String(), "path", cfg.WebSocketPath)
		if err := srv.Serve(httpLn); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if streamLn != nil {
		g.Go(func() error { return hub.ServeListener(ctx, streamLn) })
	}

	return g.Wait()
}

func listenerPort(ln net.Listener) uint16 {
	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return 0
	}
	p, _ := strconv.ParseUint(port, 10, 16)
	return uint16(p)
}
