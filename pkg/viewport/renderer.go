package viewport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/worthb0123/go-shared-fork/pkg/register"
	"github.com/worthb0123/go-shared-fork/pkg/scroll"
)

// Default geometry.
const (
	DefaultItemSize = 160
	DefaultGap      = 16
)

// Renderer errors.
var (
	ErrInvalidItemSize = errors.New("item size must be positive")
	ErrNilSource       = errors.New("source is nil")
	ErrNilSurface      = errors.New("surface is nil")
	ErrNilSkin         = errors.New("skin is nil")
)

// Config configures a Renderer.
type Config struct {
	// Layout gives the geometry. Count is taken from the source.
	Layout Layout

	// Optimized selects period-aware scroll physics with wheel
	// acceleration. When false, plain linear smoothing is used.
	Optimized bool

	// Physics overrides the tuning derived from Layout and Optimized.
	Physics *scroll.Params

	Logger *slog.Logger
}

// DefaultConfig returns an optimized grid with the default geometry.
func DefaultConfig() Config {
	return Config{
		Layout: Layout{
			Mode:     Grid,
			ItemSize: DefaultItemSize,
			Gap:      DefaultGap,
		},
		Optimized: true,
	}
}

// TableConfig returns an optimized list of table rows.
func TableConfig() Config {
	return Config{
		Layout: Layout{
			Mode:     List,
			ItemSize: TableRowHeight,
		},
		Optimized: true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Layout.ItemSize <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidItemSize, c.Layout.ItemSize)
	}
	return nil
}

// physics returns the scroll tuning the config selects.
func (c *Config) physics() scroll.Params {
	switch {
	case c.Physics != nil:
		return *c.Physics
	case !c.Optimized:
		return scroll.LinearParams()
	case c.Layout.Mode == List:
		return scroll.TableParams(c.Layout.Period())
	default:
		return scroll.GridParams(c.Layout.ItemSize, c.Layout.Gap)
	}
}

// Stats counts renderer activity.
type Stats struct {
	Frames  uint64
	Painted uint64
}

// Renderer paints the visible items of a Source onto a Surface.
type Renderer struct {
	mu sync.Mutex

	layout    Layout
	physics   *scroll.Physics
	wheel     *scroll.Wheel
	optimized bool
	state     scroll.State

	source  Source
	surface Surface
	skin    Skin
	req     FrameRequester
	logger  *slog.Logger

	generation uint64
	visible    Range
	closed     bool
	stats      Stats
}

// NewRenderer creates a renderer. newRequester binds the frame scheduler;
// nil selects a Scheduler at DefaultFPS. The first frame is requested
// immediately.
func NewRenderer(cfg Config, src Source, surface Surface, skin Skin, newRequester RequesterFactory) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrNilSource
	}
	if surface == nil {
		return nil, ErrNilSurface
	}
	if skin == nil {
		return nil, ErrNilSkin
	}
	if newRequester == nil {
		newRequester = SchedulerFactory(DefaultFPS)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &Renderer{
		layout:     cfg.Layout,
		physics:    scroll.New(cfg.physics()),
		wheel:      scroll.NewWheel(),
		optimized:  cfg.Optimized,
		source:     src,
		surface:    surface,
		skin:       skin,
		logger:     logger,
		generation: src.Generation(),
	}
	src.View(func(v register.View) {
		r.layout.Count = itemCount(v)
	})
	r.req = newRequester(r.Frame)
	r.req.Request()
	return r, nil
}

// Layout returns the current geometry.
func (r *Renderer) Layout() Layout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layout
}

// State returns the scroll state.
func (r *Renderer) State() scroll.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Visible returns the index range painted by the last frame.
func (r *Renderer) Visible() Range {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// Stats returns frame counters.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// ScrollTo sets the scroll target, clamped to the content.
func (r *Renderer) ScrollTo(offset float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setTarget(offset)
}

// ScrollBy moves the scroll target by delta.
func (r *Renderer) ScrollBy(delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setTarget(r.state.Target + delta)
}

// Wheel applies a wheel event. With optimization on, fast consecutive
// events add accelerated extra distance to the target.
func (r *Renderer) Wheel(deltaY float64, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delta := deltaY
	if r.optimized {
		delta += r.wheel.Input(deltaY, now)
	}
	r.setTarget(r.state.Target + delta)
}

// Resize changes the surface extent.
func (r *Renderer) Resize(width, height float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width == r.layout.Width && height == r.layout.Height {
		return
	}
	r.layout.Width, r.layout.Height = width, height
	r.clampState()
	r.request()
}

// Sync checks the source for new data and requests a frame when the
// generation or item count changed. It reports whether a change was seen.
func (r *Renderer) Sync() bool {
	gen := r.source.Generation()
	var count int
	r.source.View(func(v register.View) {
		count = itemCount(v)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen == r.generation && count == r.layout.Count {
		return false
	}
	r.generation = gen
	r.layout.Count = count
	r.clampState()
	r.request()
	return true
}

// Invalidate requests a repaint without any state change.
func (r *Renderer) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.request()
}

// Frame advances the scroll physics one step and repaints the visible
// items. Another frame is requested while the physics is animating.
func (r *Renderer) Frame() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	animating := r.state.Advance(r.physics)
	r.stats.Frames++

	r.surface.Clear()
	r.source.View(func(v register.View) {
		r.layout.Count = itemCount(v)
		r.clampState()
		r.visible = r.layout.Visible(r.state.Render)
		for i := r.visible.Start; i < r.visible.End; i++ {
			rect := r.layout.ItemRect(i, r.state.Render)
			if !r.layout.OnScreen(rect) {
				continue
			}
			r.skin.Paint(r.surface, itemAt(v, i), rect)
			r.stats.Painted++
		}
	})

	if animating {
		r.request()
	}
}

// Close cancels any pending frame. Later requests and frames are ignored.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.req.Cancel()
	r.logger.Debug("viewport closed", "frames", r.stats.Frames)
}

// setTarget clamps and stores a new target. Caller holds r.mu.
func (r *Renderer) setTarget(offset float64) {
	target := r.layout.ClampOffset(offset)
	if target == r.state.Target {
		return
	}
	r.state.Target = target
	r.request()
}

// clampState pulls target and render offset back inside the content after
// the item count shrank. Caller holds r.mu.
func (r *Renderer) clampState() {
	r.state.Target = r.layout.ClampOffset(r.state.Target)
	r.state.Render = r.layout.ClampOffset(r.state.Render)
}

// request asks for a frame. Caller holds r.mu.
func (r *Renderer) request() {
	if r.closed {
		return
	}
	r.req.Request()
}
