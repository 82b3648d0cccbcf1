package scroll

import (
	"math"
	"time"
)

// Wheel acceleration defaults.
const (
	DefaultWheelDecay         = 0.9
	DefaultWheelThreshold     = 500
	DefaultWheelGain          = 0.02
	DefaultWheelMaxMultiplier = 50
	DefaultWheelReset         = 50 * time.Millisecond
)

// Wheel accumulates momentum from consecutive wheel events and turns fast
// spinning into extra scroll distance.
type Wheel struct {
	Decay         float64
	Threshold     float64
	Gain          float64
	MaxMultiplier float64

	// Momentum is dropped when events are further apart than Reset.
	Reset time.Duration

	momentum float64
	last     time.Time
}

// NewWheel returns a Wheel with default tuning.
func NewWheel() *Wheel {
	return &Wheel{
		Decay:         DefaultWheelDecay,
		Threshold:     DefaultWheelThreshold,
		Gain:          DefaultWheelGain,
		MaxMultiplier: DefaultWheelMaxMultiplier,
		Reset:         DefaultWheelReset,
	}
}

// Input records a wheel event of deltaY at now and returns the extra delta
// to add to the scroll target on top of deltaY itself.
func (w *Wheel) Input(deltaY float64, now time.Time) float64 {
	if w.last.IsZero() || now.Sub(w.last) > w.Reset {
		w.momentum = 0
	}
	w.last = now

	w.momentum = w.momentum*w.Decay + math.Abs(deltaY)
	if w.momentum <= w.Threshold {
		return 0
	}

	multiplier := math.Min((w.momentum-w.Threshold)*w.Gain, w.MaxMultiplier)
	if multiplier <= 1 {
		return 0
	}
	return deltaY * multiplier
}

// Momentum returns the accumulated momentum.
func (w *Wheel) Momentum() float64 {
	return w.momentum
}
