package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/worthb0123/go-shared-fork/pkg/discovery"
	"github.com/worthb0123/go-shared-fork/pkg/feed"
	"github.com/worthb0123/go-shared-fork/pkg/producer"
)

// Config holds the producer configuration. A config file is read first;
// flags given on the command line override it.
type Config struct {
	Listen        string     `yaml:"listen"`
	WebSocketPath string     `yaml:"ws_path"`
	Stream        string     `yaml:"stream"`
	Devices       int        `yaml:"devices"`
	Registers     int        `yaml:"registers"`
	MaxFPS        int        `yaml:"max_fps"`
	Seed          uint64     `yaml:"seed"`
	ProtocolLog   string     `yaml:"protocol_log"`
	Log           LogConfig  `yaml:"log"`
	MDNS          MDNSConfig `yaml:"mdns"`
	MQTT          MQTTConfig `yaml:"mqtt"`
}

// LogConfig selects the operational log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MDNSConfig controls the service advertisement.
type MDNSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Instance  string `yaml:"instance"`
	Interface string `yaml:"interface"`
}

// MQTTConfig bridges broker topics into producer channels. An empty URL
// disables the bridge.
type MQTTConfig struct {
	URL      string       `yaml:"url"`
	ClientID string       `yaml:"client_id"`
	Username string       `yaml:"username"`
	Password string       `yaml:"password"`
	Routes   []feed.Route `yaml:"routes"`
}

func defaultConfig() Config {
	pc := producer.DefaultConfig()
	return Config{
		Listen:        ":8080",
		WebSocketPath: discovery.DefaultWebSocketPath,
		Devices:       pc.Devices,
		Registers:     pc.Registers,
		MaxFPS:        pc.MaxFPS,
		Log:           LogConfig{Level: "info", Format: "text"},
		MDNS:          MDNSConfig{Instance: "telemon-producer"},
		MQTT:          MQTTConfig{ClientID: feed.DefaultBrokerConfig().ClientID},
	}
}

// loadConfig reads a YAML config file over the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if !strings.HasPrefix(c.WebSocketPath, "/") {
		return fmt.Errorf("websocket path %q must start with /", c.WebSocketPath)
	}
	pc := c.producerConfig()
	if err := pc.Validate(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.MDNS.Enabled {
		if err := discovery.ValidateInstanceName(c.MDNS.Instance); err != nil {
			return err
		}
	}
	if c.MQTT.URL != "" {
		if len(c.MQTT.Routes) == 0 {
			return errors.New("mqtt bridge needs at least one route")
		}
		for _, r := range c.MQTT.Routes {
			if err := r.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Config) producerConfig() producer.Config {
	pc := producer.DefaultConfig()
	pc.Devices = c.Devices
	pc.Registers = c.Registers
	pc.MaxFPS = c.MaxFPS
	pc.Seed = c.Seed
	return pc
}

func (c *Config) brokerConfig() feed.BrokerConfig {
	bc := feed.DefaultBrokerConfig()
	bc.URL = c.MQTT.URL
	if c.MQTT.ClientID != "" {
		bc.ClientID = c.MQTT.ClientID
	}
	bc.Username = c.MQTT.Username
	bc.Password = c.MQTT.Password
	return bc
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

func newLogger(c LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
