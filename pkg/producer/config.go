package producer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/worthb0123/go-shared-fork/pkg/log"
	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// Defaults.
const (
	DefaultDevices           = 2
	DefaultRegisters         = 10000
	DefaultMaxFPS            = 10
	DefaultPhysicsInterval   = 100 * time.Millisecond
	DefaultBroadcastInterval = 10 * time.Millisecond
	DefaultOutboxLimit       = 256

	// DeviceChannelPrefix starts every device channel name.
	DeviceChannelPrefix = "device_"
)

// Configuration errors.
var (
	ErrInvalidDevices   = errors.New("device count out of range")
	ErrInvalidRegisters = errors.New("register count out of range")
	ErrInvalidInterval  = errors.New("interval must be positive")
	ErrInvalidFPS       = errors.New("max fps must be positive")
)

// ConfigFunc returns the register config of one device register. A nil
// return leaves the register unconfigured.
type ConfigFunc func(device, index int) *wire.RegisterConfig

// Config configures a Hub.
type Config struct {
	// Devices is the number of simulated devices, numbered from 1.
	Devices int

	// Registers is the register count of every device.
	Registers int

	// MaxFPS caps subscription rates; it is also the rate of a
	// subscription that asks for none.
	MaxFPS int

	PhysicsInterval   time.Duration
	BroadcastInterval time.Duration

	// OutboxLimit is the queue length above which a session's device
	// deltas are deferred.
	OutboxLimit int

	// Seed makes the simulation reproducible. Zero seeds from the clock.
	Seed uint64

	// RegisterConfig builds device register configs. Nil selects
	// DefaultRegisterConfig.
	RegisterConfig ConfigFunc

	// Logger receives operational logs. Nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives protocol events of every session.
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default hub configuration.
func DefaultConfig() Config {
	return Config{
		Devices:           DefaultDevices,
		Registers:         DefaultRegisters,
		MaxFPS:            DefaultMaxFPS,
		PhysicsInterval:   DefaultPhysicsInterval,
		BroadcastInterval: DefaultBroadcastInterval,
		OutboxLimit:       DefaultOutboxLimit,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Devices < 0 || c.Devices > 1024 {
		return fmt.Errorf("%w: %d", ErrInvalidDevices, c.Devices)
	}
	// Register indices are 16 bits on the wire.
	if c.Registers < 0 || c.Registers > 1<<16 {
		return fmt.Errorf("%w: %d", ErrInvalidRegisters, c.Registers)
	}
	if c.PhysicsInterval <= 0 || c.BroadcastInterval <= 0 {
		return ErrInvalidInterval
	}
	if c.MaxFPS <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFPS, c.MaxFPS)
	}
	return nil
}

// interval returns the send interval for a requested rate.
func (c *Config) interval(fps int) time.Duration {
	if fps <= 0 || fps > c.MaxFPS {
		fps = c.MaxFPS
	}
	return time.Second / time.Duration(fps)
}

// registerColors cycles through the register configs of a device.
var registerColors = []string{"#f59e0b", "#22c55e", "#3b82f6", "#a855f7"}

// DefaultRegisterConfig gives every register the default display ranges
// with a color per register group of ten.
func DefaultRegisterConfig(device, index int) *wire.RegisterConfig {
	c := wire.DefaultRegisterConfig()
	c.Color = registerColors[(index/10+device)%len(registerColors)]
	return &c
}
