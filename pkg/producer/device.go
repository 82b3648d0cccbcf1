package producer

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// Register value bounds. Values leaving the range wrap to the other end.
const (
	MinValue = 1
	MaxValue = 100
)

// simRegister is one simulated register. The published value is the
// integer part of the drifting internal value.
type simRegister struct {
	internal  float64
	incDec    float64
	published uint8
}

// Device is a simulated bank of registers.
type Device struct {
	ID      int
	regs    []simRegister
	configs []*wire.RegisterConfig
}

// newDevice seeds n registers with random values in 1..100 and random
// drift rates in [-2, 2], never slower than 0.1 per tick.
func newDevice(id, n int, rng *rand.Rand, configFn ConfigFunc) *Device {
	d := &Device{
		ID:      id,
		regs:    make([]simRegister, n),
		configs: make([]*wire.RegisterConfig, n),
	}
	for i := range d.regs {
		v := rng.IntN(MaxValue) + MinValue
		incDec := rng.Float64()*4 - 2
		if incDec > -0.1 && incDec < 0.1 {
			if incDec < 0 {
				incDec = -0.1
			} else {
				incDec = 0.1
			}
		}
		d.regs[i] = simRegister{internal: float64(v), incDec: incDec, published: uint8(v)}
		d.configs[i] = configFn(id, i)
	}
	return d
}

// Step advances every register by one physics tick.
func (d *Device) Step() {
	for i := range d.regs {
		r := &d.regs[i]
		r.internal += r.incDec
		v := int(r.internal)
		switch {
		case v > MaxValue:
			v = MinValue
			r.internal = MinValue
		case v < MinValue:
			v = MaxValue
			r.internal = MaxValue
		}
		r.published = uint8(v)
	}
}

// State copies the published values into dst, growing it as needed.
func (d *Device) State(dst []uint8) []uint8 {
	if cap(dst) < len(d.regs) {
		dst = make([]uint8, len(d.regs))
	}
	dst = dst[:len(d.regs)]
	for i, r := range d.regs {
		dst[i] = r.published
	}
	return dst
}

// Len returns the register count.
func (d *Device) Len() int {
	return len(d.regs)
}

// DeviceChannel returns the channel name of device id.
func DeviceChannel(id int) string {
	return DeviceChannelPrefix + strconv.Itoa(id)
}

// ParseDeviceChannel extracts the device id from a device channel name.
func ParseDeviceChannel(channel string) (int, bool) {
	rest, ok := strings.CutPrefix(channel, DeviceChannelPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// String describes the device.
func (d *Device) String() string {
	return fmt.Sprintf("device %d (%d registers)", d.ID, len(d.regs))
}
