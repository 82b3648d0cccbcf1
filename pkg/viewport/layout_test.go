package viewport

import "testing"

func gridLayout() Layout {
	return Layout{Mode: Grid, ItemSize: 160, Gap: 16, Width: 1000, Height: 400, Count: 23}
}

func TestGridGeometry(t *testing.T) {
	l := gridLayout()

	if got := l.Columns(); got != 5 {
		t.Errorf("Columns() = %d, want 5", got)
	}
	if got := l.Rows(); got != 5 {
		t.Errorf("Rows() = %d, want 5", got)
	}
	if got := l.ContentHeight(); got != 880 {
		t.Errorf("ContentHeight() = %v, want 880", got)
	}
	if got := l.MaxOffset(); got != 480 {
		t.Errorf("MaxOffset() = %v, want 480", got)
	}
	if got := l.ClampOffset(-5); got != 0 {
		t.Errorf("ClampOffset(-5) = %v, want 0", got)
	}
	if got := l.ClampOffset(9999); got != 480 {
		t.Errorf("ClampOffset(9999) = %v, want 480", got)
	}
}

func TestGridVisible(t *testing.T) {
	l := gridLayout()

	tests := []struct {
		offset float64
		want   Range
	}{
		{0, Range{0, 20}},
		{175, Range{0, 20}},
		{300, Range{5, 23}},
		{480, Range{10, 23}},
	}
	for _, tt := range tests {
		if got := l.Visible(tt.offset); got != tt.want {
			t.Errorf("Visible(%v) = %+v, want %+v", tt.offset, got, tt.want)
		}
	}
}

func TestGridItemRectCentersRows(t *testing.T) {
	l := gridLayout()

	// Row width 5*160 + 4*16 = 864, so the margin is 68.
	got := l.ItemRect(7, 100)
	want := Rect{X: 420, Y: 76, W: 160, H: 160}
	if got != want {
		t.Errorf("ItemRect(7, 100) = %+v, want %+v", got, want)
	}

	first := l.ItemRect(0, 0)
	last := l.ItemRect(4, 0)
	if left, right := first.X, l.Width-(last.X+last.W); left != right {
		t.Errorf("margins = %v/%v, want equal", left, right)
	}
}

func TestGridTooNarrow(t *testing.T) {
	l := gridLayout()
	l.Width = 100

	if got := l.Columns(); got != 0 {
		t.Errorf("Columns() = %d, want 0", got)
	}
	if got := l.Visible(0); got.Len() != 0 {
		t.Errorf("Visible(0) = %+v, want empty", got)
	}
	if got := l.ContentHeight(); got != 0 {
		t.Errorf("ContentHeight() = %v, want 0", got)
	}
}

func TestListGeometry(t *testing.T) {
	l := Layout{Mode: List, ItemSize: 30, Width: 800, Height: 95, Count: 1000}

	if got := l.Columns(); got != 1 {
		t.Errorf("Columns() = %d, want 1", got)
	}
	if got := l.Visible(45); got != (Range{1, 6}) {
		t.Errorf("Visible(45) = %+v, want {1 6}", got)
	}
	if got := l.Visible(l.MaxOffset()); got.End != 1000 {
		t.Errorf("Visible(max).End = %d, want 1000", got.End)
	}

	r := l.ItemRect(3, 45)
	if r != (Rect{X: 0, Y: 45, W: 800, H: 30}) {
		t.Errorf("ItemRect(3, 45) = %+v", r)
	}
}

func TestOnScreen(t *testing.T) {
	l := Layout{Mode: List, ItemSize: 30, Width: 100, Height: 90}

	tests := []struct {
		y    float64
		want bool
	}{
		{-31, false},
		{-30, true},
		{0, true},
		{90, true},
		{91, false},
	}
	for _, tt := range tests {
		if got := l.OnScreen(Rect{Y: tt.y, H: 30}); got != tt.want {
			t.Errorf("OnScreen(y=%v) = %v, want %v", tt.y, got, tt.want)
		}
	}
}

func TestEmptyLayout(t *testing.T) {
	l := Layout{Mode: Grid, ItemSize: 10, Width: 100, Height: 100}
	if got := l.Visible(0); got.Len() != 0 {
		t.Errorf("Visible(0) on empty layout = %+v", got)
	}
	if got := l.MaxOffset(); got != 0 {
		t.Errorf("MaxOffset() = %v, want 0", got)
	}
}
