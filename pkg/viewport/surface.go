package viewport

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Align anchors text horizontally at the x passed to DrawText.
type Align uint8

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

// Style is how text or a fill is drawn. Colors are CSS hex strings; an
// empty color means the surface default.
type Style struct {
	Color      string
	Background string
	Bold       bool
	Align      Align
}

// Surface is a paintable area in layout units.
type Surface interface {
	// Clear resets the whole surface to the background.
	Clear()

	// FillRect paints r with color.
	FillRect(r Rect, color string)

	// DrawText draws s with its vertical center at y.
	DrawText(x, y float64, s string, st Style)
}

// Cell is one character position of a TextSurface.
type Cell struct {
	Rune  rune
	Style Style
}

// TextSurface is a character-cell Surface for terminals. Layout units are
// mapped to cells by CellWidth and CellHeight.
type TextSurface struct {
	cols, rows int
	cellW      float64
	cellH      float64
	background string
	cells      [][]Cell
	clears     int
}

var _ Surface = (*TextSurface)(nil)

// NewTextSurface creates a cols×rows surface where one cell spans
// cellW×cellH layout units.
func NewTextSurface(cols, rows int, cellW, cellH float64) *TextSurface {
	s := &TextSurface{cellW: cellW, cellH: cellH}
	s.Resize(cols, rows)
	return s
}

// SetBackground sets the color Clear fills with.
func (s *TextSurface) SetBackground(color string) {
	s.background = color
}

// Resize changes the cell grid and clears it.
func (s *TextSurface) Resize(cols, rows int) {
	s.cols, s.rows = max(cols, 0), max(rows, 0)
	s.cells = make([][]Cell, s.rows)
	for i := range s.cells {
		s.cells[i] = make([]Cell, s.cols)
	}
	s.Clear()
}

// Size returns the surface extent in layout units.
func (s *TextSurface) Size() (width, height float64) {
	return float64(s.cols) * s.cellW, float64(s.rows) * s.cellH
}

// Dims returns the cell grid size.
func (s *TextSurface) Dims() (cols, rows int) {
	return s.cols, s.rows
}

// Clears returns how many times the surface was cleared.
func (s *TextSurface) Clears() int {
	return s.clears
}

// Clear implements Surface.
func (s *TextSurface) Clear() {
	s.clears++
	for _, row := range s.cells {
		for i := range row {
			row[i] = Cell{Rune: ' ', Style: Style{Background: s.background}}
		}
	}
}

// FillRect implements Surface.
func (s *TextSurface) FillRect(r Rect, color string) {
	c0, c1 := s.col(r.X), s.col(r.X+r.W)
	r0, r1 := s.row(r.Y), s.rowEnd(r.Y+r.H)
	for y := max(r0, 0); y < min(r1, s.rows); y++ {
		for x := max(c0, 0); x < min(c1, s.cols); x++ {
			s.cells[y][x].Style.Background = color
		}
	}
}

// DrawText implements Surface. Text outside the grid is clipped.
func (s *TextSurface) DrawText(x, y float64, text string, st Style) {
	row := s.row(y)
	if row < 0 || row >= s.rows {
		return
	}
	n := utf8.RuneCountInString(text)
	start := s.col(x)
	switch st.Align {
	case AlignRight:
		start -= n
	case AlignCenter:
		start -= n / 2
	}

	line := s.cells[row]
	i := 0
	for _, r := range text {
		c := start + i
		i++
		if c < 0 || c >= s.cols {
			continue
		}
		bg := st.Background
		if bg == "" {
			bg = line[c].Style.Background
		}
		line[c] = Cell{Rune: r, Style: Style{Color: st.Color, Background: bg, Bold: st.Bold}}
	}
}

// Row returns the cells of one line.
func (s *TextSurface) Row(i int) []Cell {
	if i < 0 || i >= s.rows {
		return nil
	}
	return s.cells[i]
}

// Lines returns the plain text of every line with trailing spaces removed.
func (s *TextSurface) Lines() []string {
	lines := make([]string, s.rows)
	var b strings.Builder
	for i, row := range s.cells {
		b.Reset()
		for _, c := range row {
			b.WriteRune(c.Rune)
		}
		lines[i] = strings.TrimRight(b.String(), " ")
	}
	return lines
}

// String joins Lines with newlines.
func (s *TextSurface) String() string {
	return strings.Join(s.Lines(), "\n")
}

func (s *TextSurface) col(x float64) int {
	if s.cellW <= 0 {
		return 0
	}
	return int(math.Round(x / s.cellW))
}

func (s *TextSurface) row(y float64) int {
	if s.cellH <= 0 {
		return 0
	}
	return int(math.Floor(y / s.cellH))
}

func (s *TextSurface) rowEnd(y float64) int {
	if s.cellH <= 0 {
		return 0
	}
	return int(math.Ceil(y / s.cellH))
}
