package scroll

import (
	"math"
	"testing"
	"time"
)

func TestWheelAcceleratesAfterThreshold(t *testing.T) {
	w := NewWheel()
	now := time.Unix(1000, 0)

	for i := 0; i < 7; i++ {
		if extra := w.Input(100, now); extra != 0 {
			t.Fatalf("event %d: extra = %v, want 0", i, extra)
		}
		now = now.Add(time.Millisecond)
	}

	extra := w.Input(100, now)
	if math.Abs(extra-139.06558) > 1e-4 {
		t.Errorf("extra = %v, want ~139.07", extra)
	}
}

func TestWheelKeepsDirection(t *testing.T) {
	w := NewWheel()
	now := time.Unix(1000, 0)

	if extra := w.Input(-1000, now); extra >= 0 {
		t.Errorf("extra = %v, want negative", extra)
	}
}

func TestWheelMultiplierCap(t *testing.T) {
	w := NewWheel()

	extra := w.Input(5000, time.Unix(1000, 0))
	if extra != 5000*DefaultWheelMaxMultiplier {
		t.Errorf("extra = %v, want %v", extra, 5000*DefaultWheelMaxMultiplier)
	}
}

func TestWheelResetsAfterPause(t *testing.T) {
	w := NewWheel()
	now := time.Unix(1000, 0)

	w.Input(400, now)
	w.Input(400, now.Add(10*time.Millisecond))
	if w.Momentum() <= 400 {
		t.Fatalf("Momentum = %v, want accumulated", w.Momentum())
	}

	w.Input(30, now.Add(100*time.Millisecond))
	if w.Momentum() != 30 {
		t.Errorf("Momentum = %v, want 30 after pause", w.Momentum())
	}
}
