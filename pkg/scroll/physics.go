package scroll

import "math"

// Default tuning for grid and table viewports.
const (
	DefaultSnapEpsilon     = 1.0
	DefaultConvergence     = 0.35
	DefaultAliasThreshold  = 0.5
	DefaultFreezeThreshold = 0.15
	DefaultSafeBuffer      = 0.25

	GridCatchUp      = 600
	GridMinVelocity  = 0.2
	TableCatchUp     = 200
	TableMinVelocity = 0.3

	// Linear smoothing, used when scroll optimization is turned off.
	LinearSnapEpsilon = 0.5
	LinearConvergence = 0.15
)

// Params tunes Physics. Fractional fields are relative to Period.
type Params struct {
	// Period is the distance between consecutive item rows (size + gap).
	Period float64

	SnapEpsilon float64
	CatchUp     float64
	Convergence float64

	// MinVelocity is the smallest step, as a fraction of Period.
	MinVelocity float64

	// Steps longer than AliasThreshold periods are checked for aliasing.
	AliasThreshold float64

	// A step within FreezeThreshold periods of a whole multiple is moved
	// SafeBuffer periods past it.
	FreezeThreshold float64
	SafeBuffer      float64

	// Linear disables catch-up, the velocity floor and alias correction.
	Linear bool
}

// GridParams returns the tuning for a grid of square items.
func GridParams(itemSize, gap float64) Params {
	return Params{
		Period:          itemSize + gap,
		SnapEpsilon:     DefaultSnapEpsilon,
		CatchUp:         GridCatchUp,
		Convergence:     DefaultConvergence,
		MinVelocity:     GridMinVelocity,
		AliasThreshold:  DefaultAliasThreshold,
		FreezeThreshold: DefaultFreezeThreshold,
		SafeBuffer:      DefaultSafeBuffer,
	}
}

// TableParams returns the tuning for a list of fixed-height rows.
func TableParams(rowHeight float64) Params {
	p := GridParams(rowHeight, 0)
	p.CatchUp = TableCatchUp
	p.MinVelocity = TableMinVelocity
	return p
}

// LinearParams returns plain exponential smoothing.
func LinearParams() Params {
	return Params{
		SnapEpsilon: LinearSnapEpsilon,
		Convergence: LinearConvergence,
		Linear:      true,
	}
}

// Physics advances a render offset toward a target, one frame at a time.
type Physics struct {
	p Params
}

// New creates a Physics with the given tuning.
func New(p Params) *Physics {
	return &Physics{p: p}
}

// Params returns the tuning in use.
func (ph *Physics) Params() Params {
	return ph.p
}

// Step computes the render offset for the next frame. animating is false
// once render has snapped to target and no further frames are needed.
func (ph *Physics) Step(target, render float64) (next float64, animating bool) {
	p := ph.p
	diff := target - render
	abs := math.Abs(diff)

	if abs < p.SnapEpsilon {
		return target, false
	}
	if p.Linear {
		return render + diff*p.Convergence, true
	}

	if p.CatchUp > 0 && abs > p.CatchUp {
		render = target - sign(diff)*p.CatchUp
		diff = target - render
	}

	step := diff * p.Convergence
	if minStep := p.Period * p.MinVelocity; math.Abs(step) < minStep {
		step = sign(diff) * minStep
	}

	if p.Period > 0 && math.Abs(step) > p.Period*p.AliasThreshold {
		nearest := math.Round(step / p.Period)
		remainder := step - nearest*p.Period
		aliasing := sign(remainder) != sign(step)
		freezing := math.Abs(remainder) < p.Period*p.FreezeThreshold
		if aliasing || freezing {
			step = nearest*p.Period + sign(step)*p.Period*p.SafeBuffer
		}
	}

	// Never pass the target.
	if math.Abs(step) >= math.Abs(diff) {
		return target, true
	}
	return render + step, true
}

// State is the scroll position of one viewport.
type State struct {
	Target float64
	Render float64
}

// Advance moves s.Render one frame toward s.Target.
func (s *State) Advance(ph *Physics) (animating bool) {
	s.Render, animating = ph.Step(s.Target, s.Render)
	return animating
}

// Settled reports whether the render offset has reached the target.
func (s State) Settled() bool {
	return s.Render == s.Target
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
