package viewport

import "math"

// Mode selects how items are arranged.
type Mode uint8

const (
	// Grid wraps items into as many columns as fit the width.
	Grid Mode = iota
	// List places one item per row across the full width.
	List
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Grid:
		return "grid"
	case List:
		return "list"
	default:
		return "unknown"
	}
}

// Layout describes item geometry and the surface extent.
type Layout struct {
	Mode Mode

	// ItemSize is the item height, and its width when ItemWidth is 0.
	ItemSize  float64
	ItemWidth float64
	Gap       float64

	Width  float64
	Height float64
	Count  int
}

// Range is a half-open span of item indices.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in r.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether i lies in r.
func (r Range) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

// Rect is an item's position on the surface.
type Rect struct {
	X, Y, W, H float64
}

// itemWidth returns the horizontal item extent.
func (l Layout) itemWidth() float64 {
	if l.ItemWidth > 0 {
		return l.ItemWidth
	}
	return l.ItemSize
}

// Period returns the vertical distance between consecutive rows.
func (l Layout) Period() float64 {
	return l.ItemSize + l.Gap
}

// Columns returns how many items fit side by side; 0 when none fit.
func (l Layout) Columns() int {
	if l.Mode == List {
		return 1
	}
	period := l.itemWidth() + l.Gap
	if period <= 0 {
		return 0
	}
	cols := int(math.Floor((l.Width + l.Gap) / period))
	if cols < 1 {
		return 0
	}
	return cols
}

// Rows returns the number of item rows.
func (l Layout) Rows() int {
	cols := l.Columns()
	if cols == 0 || l.Count <= 0 {
		return 0
	}
	return (l.Count + cols - 1) / cols
}

// ContentHeight returns the total scrollable height.
func (l Layout) ContentHeight() float64 {
	return float64(l.Rows()) * l.Period()
}

// MaxOffset returns the largest useful scroll offset.
func (l Layout) MaxOffset() float64 {
	return math.Max(0, l.ContentHeight()-l.Height)
}

// ClampOffset limits offset to [0, MaxOffset].
func (l Layout) ClampOffset(offset float64) float64 {
	return math.Min(math.Max(offset, 0), l.MaxOffset())
}

// Visible returns the items at least partly on screen at offset.
func (l Layout) Visible(offset float64) Range {
	cols := l.Columns()
	period := l.Period()
	if cols == 0 || period <= 0 || l.Count <= 0 {
		return Range{}
	}

	startRow := int(math.Max(0, math.Floor(offset/period)))
	visibleRows := int(math.Ceil(l.Height/period)) + 1
	endRow := min(l.Rows(), startRow+visibleRows)
	if endRow <= startRow {
		return Range{}
	}
	return Range{
		Start: startRow * cols,
		End:   min(l.Count, endRow*cols),
	}
}

// ItemRect returns where item index is drawn at offset. Grid rows are
// centered horizontally.
func (l Layout) ItemRect(index int, offset float64) Rect {
	if l.Mode == List {
		return Rect{
			X: 0,
			Y: float64(index)*l.Period() - offset,
			W: l.Width,
			H: l.ItemSize,
		}
	}

	cols := l.Columns()
	if cols == 0 {
		return Rect{}
	}
	w := l.itemWidth()
	row, col := index/cols, index%cols
	rowWidth := float64(cols)*w + float64(cols-1)*l.Gap
	marginX := (l.Width - rowWidth) / 2

	return Rect{
		X: marginX + float64(col)*(w+l.Gap),
		Y: float64(row)*l.Period() - offset,
		W: w,
		H: l.ItemSize,
	}
}

// OnScreen reports whether r intersects a surface of the layout's height.
func (l Layout) OnScreen(r Rect) bool {
	return r.Y <= l.Height && r.Y+r.H >= 0
}
