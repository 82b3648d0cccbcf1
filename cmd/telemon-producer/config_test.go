package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worthb0123/go-shared-fork/pkg/feed"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "producer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	assert.NoError(t, cfg.validate())
	assert.Equal(t, "/ws", cfg.WebSocketPath)
	assert.Equal(t, 2, cfg.Devices)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
stream: ":9091"
devices: 3
registers: 256
max_fps: 20
seed: 42
protocol_log: /tmp/producer.log
log:
  level: debug
  format: json
mdns:
  enabled: true
  instance: lab-bench
mqtt:
  url: tcp://broker:1883
  client_id: bench
  routes:
    - topic: sensors/+/temp
      prefix: "mqtt/"
      qos: 1
    - topic: alerts
      channel: alerts
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.validate())

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, ":9091", cfg.Stream)
	assert.Equal(t, "/ws", cfg.WebSocketPath, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.Devices)
	assert.Equal(t, 256, cfg.Registers)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.MDNS.Enabled)
	assert.Equal(t, "lab-bench", cfg.MDNS.Instance)

	require.Len(t, cfg.MQTT.Routes, 2)
	assert.Equal(t, "sensors/+/temp", cfg.MQTT.Routes[0].Topic)
	assert.Equal(t, "mqtt/", cfg.MQTT.Routes[0].Prefix)
	assert.Equal(t, byte(1), cfg.MQTT.Routes[0].QoS)
	assert.Equal(t, "alerts", cfg.MQTT.Routes[1].Channel)

	pc := cfg.producerConfig()
	assert.Equal(t, 3, pc.Devices)
	assert.Equal(t, 20, pc.MaxFPS)

	bc := cfg.brokerConfig()
	assert.Equal(t, "tcp://broker:1883", bc.URL)
	assert.Equal(t, "bench", bc.ClientID)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "devices: [1, 2"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"relative path", func(c *Config) { c.WebSocketPath = "ws" }},
		{"negative devices", func(c *Config) { c.Devices = -1 }},
		{"too many registers", func(c *Config) { c.Registers = 1<<16 + 1 }},
		{"zero fps", func(c *Config) { c.MaxFPS = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad instance", func(c *Config) {
			c.MDNS.Enabled = true
			c.MDNS.Instance = strings.Repeat("x", 64)
		}},
		{"mqtt without routes", func(c *Config) { c.MQTT.URL = "tcp://broker:1883" }},
		{"mqtt bad qos", func(c *Config) {
			c.MQTT.URL = "tcp://broker:1883"
			c.MQTT.Routes = []feed.Route{{Topic: "a", QoS: 3}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestOverrideFlag(t *testing.T) {
	saved := flags
	t.Cleanup(func() { flags = saved })

	flags.Devices = 7
	flags.MQTT.URL = "tcp://other:1883"

	cfg := defaultConfig()
	cfg.Devices = 3
	overrideFlag(&cfg, "devices")
	assert.Equal(t, 7, cfg.Devices)
	assert.Empty(t, cfg.MQTT.URL, "only the named flag is copied")

	overrideFlag(&cfg, "mqtt")
	assert.Equal(t, "tcp://other:1883", cfg.MQTT.URL)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)

	_, err = newLogger(LogConfig{Level: "nope"}, &buf)
	assert.Error(t, err)
}

func TestListenerPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	assert.NotZero(t, listenerPort(ln))
}
