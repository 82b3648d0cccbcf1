package viewport

import (
	"math"
	"strconv"

	"github.com/worthb0123/go-shared-fork/pkg/register"
	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// Source is the data a Renderer paints. register.Store satisfies it.
type Source interface {
	// Generation changes whenever the data changes.
	Generation() uint64

	// View calls fn with a consistent read-only view of the data.
	View(fn func(register.View))
}

var _ Source = (*register.Store)(nil)

// Status classifies a value against its warn and fault thresholds.
type Status uint8

const (
	StatusNormal Status = iota
	StatusWarn
	StatusFault
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusWarn:
		return "warn"
	case StatusFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Status colors.
const (
	ColorFault = "#ef4444"
	ColorWarn  = "#f59e0b"
)

// Item is one register as seen by a Skin.
type Item struct {
	Index int

	// HasValue is false for indices that only have a config so far.
	HasValue bool
	Raw      uint8
	Scaled   float64

	// Config is nil when the producer has not configured the index.
	Config *wire.RegisterConfig
}

// itemAt builds the item for index from v.
func itemAt(v register.View, index int) Item {
	it := Item{Index: index, Config: v.Config(index)}
	if index < len(v.Raw) {
		it.HasValue = true
		it.Raw = v.Raw[index]
		it.Scaled = v.Scaled[index]
	}
	return it
}

// itemCount returns how many rows a view spans. Configs may arrive before
// the first snapshot, so the longer of the two wins.
func itemCount(v register.View) int {
	return max(v.Len(), len(v.Configs))
}

// Display returns the item's config or the display defaults.
func (it Item) Display() wire.RegisterConfig {
	if it.Config != nil {
		return *it.Config
	}
	return wire.DefaultRegisterConfig()
}

// Status classifies the scaled value. Items without a value are normal.
func (it Item) Status() Status {
	if !it.HasValue {
		return StatusNormal
	}
	d := it.Display()
	switch {
	case it.Scaled < d.LowFault || it.Scaled > d.HighFault:
		return StatusFault
	case it.Scaled < d.LowWarn || it.Scaled > d.HighWarn:
		return StatusWarn
	default:
		return StatusNormal
	}
}

// Ratio returns the scaled value's position in the display range,
// clamped to [0, 1].
func (it Item) Ratio() float64 {
	d := it.Display()
	span := d.DisplayMax - d.DisplayMin
	if span == 0 {
		return 0
	}
	return math.Min(1, math.Max(0, (it.Scaled-d.DisplayMin)/span))
}

// formatValue prints small fractional values with one decimal and
// everything else as a floored integer.
func formatValue(v float64) string {
	if math.Abs(v) < 10 && v != math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(math.Floor(v), 'f', 0, 64)
}
