package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/worthb0123/go-shared-fork/pkg/viewport"
)

// styler converts surface styles to lipgloss styles, caching each one.
type styler struct {
	cache map[viewport.Style]lipgloss.Style
}

func newStyler() *styler {
	return &styler{cache: make(map[viewport.Style]lipgloss.Style)}
}

func (s *styler) style(st viewport.Style) lipgloss.Style {
	st.Align = viewport.AlignLeft
	if ls, ok := s.cache[st]; ok {
		return ls
	}
	ls := lipgloss.NewStyle().Bold(st.Bold)
	if st.Color != "" {
		ls = ls.Foreground(lipgloss.Color(st.Color))
	}
	if st.Background != "" {
		ls = ls.Background(lipgloss.Color(st.Background))
	}
	s.cache[st] = ls
	return ls
}

// render draws the surface as styled terminal lines. Adjacent cells with
// the same style are rendered as one run.
func (s *styler) render(surface *viewport.TextSurface) string {
	_, rows := surface.Dims()
	lines := make([]string, rows)

	var run strings.Builder
	var line strings.Builder
	for i := range rows {
		line.Reset()
		cells := surface.Row(i)
		for start := 0; start < len(cells); {
			st := cells[start].Style
			run.Reset()
			end := start
			for ; end < len(cells) && sameLook(cells[end].Style, st); end++ {
				run.WriteRune(cells[end].Rune)
			}
			line.WriteString(s.style(st).Render(run.String()))
			start = end
		}
		lines[i] = line.String()
	}
	return strings.Join(lines, "\n")
}

func sameLook(a, b viewport.Style) bool {
	return a.Color == b.Color && a.Background == b.Background && a.Bold == b.Bold
}
