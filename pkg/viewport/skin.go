package viewport

import (
	"math"
	"strconv"
)

// Skin paints one item into its rectangle.
type Skin interface {
	Paint(s Surface, it Item, r Rect)
}

// SkinFunc adapts a function to Skin.
type SkinFunc func(s Surface, it Item, r Rect)

// Paint implements Skin.
func (f SkinFunc) Paint(s Surface, it Item, r Rect) {
	f(s, it, r)
}

// Table colors.
const (
	TableBackground = "#000"
	TableStripe     = "#111"
	TableText       = "#ccc"
	TableFinal      = "#fff"
)

// TableRowHeight is the row height of the register table.
const TableRowHeight = 30

// tableInset is the left padding of the first column and the right
// padding of right-aligned cells.
const tableInset = 10

// Column is one table column.
type Column struct {
	Name  string
	Width float64
	Align Align

	// Value formats the column for an item; "-" when missing.
	Value func(it Item) string
}

const missing = "-"

// DefaultTableColumns returns the register debug table columns.
func DefaultTableColumns() []Column {
	return []Column{
		{Name: "ID", Width: 60, Align: AlignRight, Value: func(it Item) string {
			return strconv.Itoa(it.Index)
		}},
		{Name: "Raw", Width: 60, Align: AlignRight, Value: func(it Item) string {
			if !it.HasValue {
				return missing
			}
			return strconv.Itoa(int(it.Raw))
		}},
		{Name: "Final", Width: 80, Align: AlignRight, Value: func(it Item) string {
			if !it.HasValue {
				return missing
			}
			if it.Scaled != math.Trunc(it.Scaled) {
				return strconv.FormatFloat(it.Scaled, 'f', 1, 64)
			}
			return strconv.FormatFloat(it.Scaled, 'f', 0, 64)
		}},
		configColumn("Min", 60, func(it Item) string { return rounded(it.Config.DisplayMin) }),
		configColumn("Max", 60, func(it Item) string { return rounded(it.Config.DisplayMax) }),
		configColumn("L.Warn", 70, func(it Item) string { return rounded(it.Config.LowWarn) }),
		configColumn("H.Warn", 70, func(it Item) string { return rounded(it.Config.HighWarn) }),
		configColumn("L.Fault", 70, func(it Item) string { return rounded(it.Config.LowFault) }),
		configColumn("H.Fault", 70, func(it Item) string { return rounded(it.Config.HighFault) }),
		configColumn("Scale", 60, func(it Item) string { return oneDecimal(it.Config.Scale) }),
		configColumn("Offset", 60, func(it Item) string { return oneDecimal(it.Config.Offset) }),
		{Name: "Color", Width: 80, Align: AlignLeft, Value: func(it Item) string {
			if it.Config == nil || it.Config.Color == "" {
				return missing
			}
			return it.Config.Color
		}},
	}
}

func configColumn(name string, width float64, value func(Item) string) Column {
	return Column{Name: name, Width: width, Align: AlignRight, Value: func(it Item) string {
		if it.Config == nil {
			return missing
		}
		return value(it)
	}}
}

func rounded(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}

func oneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// TableSkin paints an item as a table row. Odd rows get a stripe.
type TableSkin struct {
	Columns []Column
}

var _ Skin = (*TableSkin)(nil)

// NewTableSkin creates a skin with DefaultTableColumns.
func NewTableSkin() *TableSkin {
	return &TableSkin{Columns: DefaultTableColumns()}
}

// Width returns the total width of all columns including the inset.
func (t *TableSkin) Width() float64 {
	w := float64(tableInset)
	for _, c := range t.Columns {
		w += c.Width
	}
	return w
}

// PaintHeader draws the column titles as a row centered on y.
func (t *TableSkin) PaintHeader(s Surface, y float64) {
	x := float64(tableInset)
	for _, c := range t.Columns {
		s.DrawText(t.anchor(c, x), y, c.Name, Style{Color: TableFinal, Bold: true, Align: c.Align})
		x += c.Width
	}
}

// Paint implements Skin.
func (t *TableSkin) Paint(s Surface, it Item, r Rect) {
	if it.Index%2 == 1 {
		s.FillRect(r, TableStripe)
	}

	y := r.Y + r.H/2
	x := r.X + tableInset
	for _, c := range t.Columns {
		v := c.Value(it)
		st := Style{Color: TableText, Align: c.Align}
		switch {
		case c.Name == "Color" && v != missing:
			st.Color = v
		case c.Name == "Final":
			st.Color = TableFinal
		}
		s.DrawText(t.anchor(c, x), y, v, st)
		x += c.Width
	}
}

func (t *TableSkin) anchor(c Column, x float64) float64 {
	if c.Align == AlignRight {
		return x + c.Width - tableInset
	}
	return x
}

// CellSkin paints an item as a compact grid cell: the index on top and
// the scaled value below, colored by status.
type CellSkin struct {
	Background string
	Text       string
}

var _ Skin = (*CellSkin)(nil)

// NewCellSkin creates a cell skin with the gauge palette.
func NewCellSkin() *CellSkin {
	return &CellSkin{Background: "#1a1c21", Text: "#E8E6E7"}
}

// Paint implements Skin.
func (c *CellSkin) Paint(s Surface, it Item, r Rect) {
	s.FillRect(r, c.Background)

	cx := r.X + r.W/2
	s.DrawText(cx, r.Y+r.H/4, "#"+strconv.Itoa(it.Index), Style{Color: c.Text, Align: AlignCenter})

	value := missing
	if it.HasValue {
		value = formatValue(it.Scaled)
	}
	color := c.Text
	if !it.HasValue {
		color = TableText
	}
	switch it.Status() {
	case StatusFault:
		color = ColorFault
	case StatusWarn:
		color = ColorWarn
	}
	s.DrawText(cx, r.Y+r.H*3/4, value, Style{Color: color, Bold: true, Align: AlignCenter})
}
