package viewport

import (
	"strings"
	"testing"

	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

func TestItemStatus(t *testing.T) {
	cfg := &wire.RegisterConfig{
		Scale: 1, DisplayMax: 200,
		LowFault: 10, LowWarn: 20, HighWarn: 150, HighFault: 180,
	}

	tests := []struct {
		name string
		item Item
		want Status
	}{
		{"no value", Item{}, StatusNormal},
		{"default normal", Item{HasValue: true, Scaled: 50}, StatusNormal},
		{"default low warn", Item{HasValue: true, Scaled: 7}, StatusWarn},
		{"default high fault", Item{HasValue: true, Scaled: 97}, StatusFault},
		{"config normal", Item{HasValue: true, Scaled: 100, Config: cfg}, StatusNormal},
		{"config low fault", Item{HasValue: true, Scaled: 5, Config: cfg}, StatusFault},
		{"config high warn", Item{HasValue: true, Scaled: 160, Config: cfg}, StatusWarn},
		{"config high fault", Item{HasValue: true, Scaled: 190, Config: cfg}, StatusFault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Status(); got != tt.want {
				t.Errorf("Status() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestItemRatio(t *testing.T) {
	cfg := &wire.RegisterConfig{DisplayMin: 100, DisplayMax: 200}

	tests := []struct {
		scaled float64
		want   float64
	}{
		{150, 0.5},
		{50, 0},
		{300, 1},
	}
	for _, tt := range tests {
		it := Item{HasValue: true, Scaled: tt.scaled, Config: cfg}
		if got := it.Ratio(); got != tt.want {
			t.Errorf("Ratio(%v) = %v, want %v", tt.scaled, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{5, "5"},
		{3.14, "3.1"},
		{-2.7, "-2.7"},
		{12.7, "12"},
		{401, "401"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func columnValues(it Item) map[string]string {
	out := make(map[string]string)
	for _, c := range DefaultTableColumns() {
		out[c.Name] = c.Value(it)
	}
	return out
}

func TestTableColumnsConfigured(t *testing.T) {
	it := Item{
		Index:    5,
		HasValue: true,
		Raw:      200,
		Scaled:   401,
		Config: &wire.RegisterConfig{
			Scale: 2, Offset: 1,
			DisplayMin: 0, DisplayMax: 500,
			LowWarn: 49.6, HighWarn: 450.2,
			LowFault: 10, HighFault: 480,
			Color: "#22c55e",
		},
	}

	want := map[string]string{
		"ID": "5", "Raw": "200", "Final": "401",
		"Min": "0", "Max": "500",
		"L.Warn": "50", "H.Warn": "450",
		"L.Fault": "10", "H.Fault": "480",
		"Scale": "2.0", "Offset": "1.0",
		"Color": "#22c55e",
	}
	got := columnValues(it)
	for name, w := range want {
		if got[name] != w {
			t.Errorf("%s = %q, want %q", name, got[name], w)
		}
	}
}

func TestTableColumnsMissing(t *testing.T) {
	got := columnValues(Item{Index: 9})
	for name, v := range got {
		if name == "ID" {
			continue
		}
		if v != "-" {
			t.Errorf("%s = %q, want -", name, v)
		}
	}

	fractional := columnValues(Item{HasValue: true, Scaled: 12.25})
	if fractional["Final"] != "12.2" && fractional["Final"] != "12.3" {
		t.Errorf("Final = %q, want one decimal", fractional["Final"])
	}
}

func TestTableSkinColors(t *testing.T) {
	s := NewTextSurface(80, 1, 10, TableRowHeight)
	skin := NewTableSkin()
	it := Item{Index: 0, HasValue: true, Raw: 3, Scaled: 3, Config: &wire.RegisterConfig{Scale: 1, Color: "#22c55e"}}
	skin.Paint(s, it, Rect{W: 800, H: TableRowHeight})

	line := s.Lines()[0]
	idx := strings.Index(line, "#22c55e")
	if idx < 0 {
		t.Fatalf("line = %q, want color value", line)
	}
	if got := s.Row(0)[idx].Style.Color; got != "#22c55e" {
		t.Errorf("color cell style = %q, want the color itself", got)
	}
	if skin.Width() != 810 {
		t.Errorf("Width() = %v, want 810", skin.Width())
	}
}

func TestTableHeader(t *testing.T) {
	s := NewTextSurface(100, 1, 8, TableRowHeight)
	NewTableSkin().PaintHeader(s, TableRowHeight/2)

	fields := strings.Fields(s.Lines()[0])
	if len(fields) != 12 || fields[0] != "ID" || fields[11] != "Color" {
		t.Errorf("header = %v", fields)
	}
}

func TestCellSkinStatusColor(t *testing.T) {
	s := NewTextSurface(16, 8, 10, 20)
	NewCellSkin().Paint(s, Item{Index: 3, HasValue: true, Scaled: 97}, Rect{W: 160, H: 160})

	text := s.String()
	if !strings.Contains(text, "#3") || !strings.Contains(text, "97") {
		t.Fatalf("cell = %q", text)
	}
	// Value row is at 3/4 of the cell height.
	row := s.Row(6)
	found := false
	for _, c := range row {
		if c.Rune == '9' {
			found = true
			if c.Style.Color != ColorFault {
				t.Errorf("value color = %q, want %q", c.Style.Color, ColorFault)
			}
		}
	}
	if !found {
		t.Error("value not on row 6")
	}
}

func TestTextSurfaceClips(t *testing.T) {
	s := NewTextSurface(5, 2, 1, 1)
	s.DrawText(3, 0, "abcdef", Style{})
	s.DrawText(-2, 1, "xyz", Style{})
	s.DrawText(0, 5, "gone", Style{})

	lines := s.Lines()
	if lines[0] != "   ab" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "z" {
		t.Errorf("line 1 = %q", lines[1])
	}

	s.Resize(3, 1)
	if cols, rows := s.Dims(); cols != 3 || rows != 1 {
		t.Errorf("Dims() = %d,%d", cols, rows)
	}
	if s.String() != "" {
		t.Errorf("String() after Resize = %q", s.String())
	}
}
