package producer

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

func TestDeviceValuesStayInRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	d := newDevice(1, 500, rng, DefaultRegisterConfig)

	for step := range 300 {
		for i, v := range d.State(nil) {
			if v < MinValue || v > MaxValue {
				t.Fatalf("step %d: register %d = %d, out of range", step, i, v)
			}
		}
		d.Step()
	}
}

func TestDeviceWraps(t *testing.T) {
	d := &Device{regs: []simRegister{
		{internal: 100.5, incDec: 1},
		{internal: 1.05, incDec: -0.1},
		{internal: 50, incDec: 0.5},
	}}
	d.Step()

	got := d.State(nil)
	want := []uint8{1, 100, 50}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("register %d = %d, want %d", i, got[i], want[i])
		}
	}
	if d.regs[0].internal != MinValue || d.regs[1].internal != MaxValue {
		t.Errorf("internal values not reset on wrap: %v, %v", d.regs[0].internal, d.regs[1].internal)
	}
}

func TestDeviceDriftIsNeverStill(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	d := newDevice(2, 2000, rng, func(int, int) *wire.RegisterConfig { return nil })
	for i, r := range d.regs {
		if r.incDec > -0.1 && r.incDec < 0.1 {
			t.Fatalf("register %d drift %v inside (-0.1, 0.1)", i, r.incDec)
		}
		if d.configs[i] != nil {
			t.Fatalf("register %d has a config", i)
		}
	}
}

func TestDeviceChannelNames(t *testing.T) {
	if got := DeviceChannel(7); got != "device_7" {
		t.Errorf("DeviceChannel(7) = %q", got)
	}

	tests := []struct {
		channel string
		id      int
		ok      bool
	}{
		{"device_1", 1, true},
		{"device_42", 42, true},
		{"device_", 0, false},
		{"device_x", 0, false},
		{"device_-1", 0, false},
		{"sensor_1", 0, false},
	}
	for _, tt := range tests {
		id, ok := ParseDeviceChannel(tt.channel)
		if id != tt.id || ok != tt.ok {
			t.Errorf("ParseDeviceChannel(%q) = %d, %v, want %d, %v", tt.channel, id, ok, tt.id, tt.ok)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"default", func(*Config) {}, nil},
		{"negative devices", func(c *Config) { c.Devices = -1 }, ErrInvalidDevices},
		{"too many registers", func(c *Config) { c.Registers = 1<<16 + 1 }, ErrInvalidRegisters},
		{"zero physics interval", func(c *Config) { c.PhysicsInterval = 0 }, ErrInvalidInterval},
		{"zero fps", func(c *Config) { c.MaxFPS = 0 }, ErrInvalidFPS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == nil && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigInterval(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		fps  int
		want int64
	}{
		{0, 100},
		{5, 200},
		{10, 100},
		{60, 100},
	}
	for _, tt := range tests {
		if got := cfg.interval(tt.fps).Milliseconds(); got != tt.want {
			t.Errorf("interval(%d) = %dms, want %dms", tt.fps, got, tt.want)
		}
	}
}
