package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/worthb0123/go-shared-fork/pkg/connection"
	"github.com/worthb0123/go-shared-fork/pkg/register"
	"github.com/worthb0123/go-shared-fork/pkg/viewport"
)

// Terminal cell geometry in layout units. A table row is one line; a grid
// item is twelve columns by four lines.
const (
	tableCellW = 8
	gridCellW  = 6
	gridCellH  = 18
	gridItem   = 72
	gridGap    = 12

	// chrome is the title and status lines around the viewport.
	chrome = 2

	statusInterval = 250 * time.Millisecond
)

type viewMode uint8

const (
	modeTable viewMode = iota
	modeGrid
)

func (v viewMode) String() string {
	if v == modeGrid {
		return "grid"
	}
	return "table"
}

type (
	// frameMsg carries a renderer frame onto the program goroutine, where
	// the surface is painted and read.
	frameMsg struct{ frame func() }

	tickMsg   struct{}
	switchMsg struct{ err error }
)

type keyMap struct {
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
	Mode     key.Binding
	Prev     key.Binding
	Next     key.Binding
	Help     key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "scroll up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "scroll down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "b"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "f", " "), key.WithHelp("pgdn", "page down")),
	Home:     key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
	End:      key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
	Mode:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "table/grid")),
	Prev:     key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev device")),
	Next:     key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next device")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Mode, k.Prev, k.Next, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Home, k.End, k.Mode},
		{k.Prev, k.Next, k.Help, k.Quit},
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f59e0b"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7a7f8a"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	stateStyle = map[connection.State]lipgloss.Style{
		connection.StateConnected:    lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e")),
		connection.StateConnecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")),
		connection.StateReconnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")),
	}
)

// monitor is the bubbletea model of the register view.
type monitor struct {
	store     *register.Store
	feed      *deviceFeed
	target    string
	renderFPS int
	logger    *slog.Logger

	// send posts a message to the running program.
	send func(tea.Msg)

	// connState reports the connection state; it is polled every tick.
	connState func() connection.State

	mode     viewMode
	surface  *viewport.TextSurface
	header   *viewport.TextSurface
	table    *viewport.TableSkin
	renderer *viewport.Renderer
	styler   *styler

	// active mirrors renderer for the feed goroutine.
	active atomic.Pointer[viewport.Renderer]

	width, height int
	state         connection.State
	err           error
	help          help.Model
	showHelp      bool
}

func newMonitor(store *register.Store, feed *deviceFeed, target string, mode viewMode, renderFPS int, logger *slog.Logger) *monitor {
	return &monitor{
		store:     store,
		feed:      feed,
		target:    target,
		renderFPS: renderFPS,
		logger:    logger,
		send:      func(tea.Msg) {},
		connState: func() connection.State { return connection.StateDisconnected },
		mode:      mode,
		table:     viewport.NewTableSkin(),
		styler:    newStyler(),
		help:      help.New(),
	}
}

// build replaces the renderer for the current mode and terminal size.
func (m *monitor) build() error {
	if m.renderer != nil {
		m.renderer.Close()
	}

	cols, rows := max(m.width, 1), max(m.height-chrome, 1)
	var cfg viewport.Config
	var skin viewport.Skin
	switch m.mode {
	case modeGrid:
		cfg = viewport.DefaultConfig()
		cfg.Layout.ItemSize, cfg.Layout.Gap = gridItem, gridGap
		m.surface = viewport.NewTextSurface(cols, rows, gridCellW, gridCellH)
		m.header = nil
		skin = viewport.NewCellSkin()
	default:
		cfg = viewport.TableConfig()
		rows = max(rows-1, 1)
		m.surface = viewport.NewTextSurface(cols, rows, tableCellW, viewport.TableRowHeight)
		m.header = viewport.NewTextSurface(cols, 1, tableCellW, viewport.TableRowHeight)
		m.table.PaintHeader(m.header, viewport.TableRowHeight/2)
		skin = m.table
	}
	cfg.Layout.Width, cfg.Layout.Height = m.surface.Size()
	cfg.Logger = m.logger

	send := m.send
	r, err := viewport.NewRenderer(cfg, m.store, m.surface, skin, func(frame func()) viewport.FrameRequester {
		return viewport.NewScheduler(m.renderFPS, func() { send(frameMsg{frame: frame}) })
	})
	if err != nil {
		return err
	}
	m.renderer = r
	m.active.Store(r)
	return nil
}

// sync is the feed's update hook; it runs on the client goroutine.
func (m *monitor) sync() {
	if r := m.active.Load(); r != nil {
		r.Sync()
	}
}

func tick() tea.Cmd {
	return tea.Tick(statusInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *monitor) Init() tea.Cmd {
	return tick()
}

func (m *monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		msg.frame()

	case tickMsg:
		m.state = m.connState()
		if m.renderer != nil {
			m.renderer.Sync()
		}
		return m, tick()

	case switchMsg:
		m.err = msg.err

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if err := m.build(); err != nil {
			m.err = err
		}

	case tea.MouseMsg:
		if m.renderer == nil || msg.Action != tea.MouseActionPress {
			break
		}
		step := m.renderer.Layout().Period()
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.renderer.Wheel(-step, time.Now())
		case tea.MouseButtonWheelDown:
			m.renderer.Wheel(step, time.Now())
		}

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *monitor) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Quit):
		if m.renderer != nil {
			m.renderer.Close()
		}
		return tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, keys.Mode):
		m.mode = (m.mode + 1) % 2
		if err := m.build(); err != nil {
			m.err = err
		}

	case key.Matches(msg, keys.Prev), key.Matches(msg, keys.Next):
		device := m.feed.Device()
		if key.Matches(msg, keys.Next) {
			device++
		} else if device > 1 {
			device--
		}
		feed := m.feed
		return func() tea.Msg { return switchMsg{err: feed.switchTo(device)} }
	}

	if m.renderer == nil {
		return nil
	}
	layout := m.renderer.Layout()
	switch {
	case key.Matches(msg, keys.Up):
		m.renderer.ScrollBy(-layout.Period())
	case key.Matches(msg, keys.Down):
		m.renderer.ScrollBy(layout.Period())
	case key.Matches(msg, keys.PageUp):
		m.renderer.ScrollBy(-layout.Height)
	case key.Matches(msg, keys.PageDown):
		m.renderer.ScrollBy(layout.Height)
	case key.Matches(msg, keys.Home):
		m.renderer.ScrollTo(0)
	case key.Matches(msg, keys.End):
		m.renderer.ScrollTo(layout.MaxOffset())
	}
	return nil
}

func (m *monitor) View() string {
	if m.renderer == nil {
		return "starting...\n"
	}

	var b strings.Builder
	b.WriteString(m.titleBar())
	b.WriteByte('\n')
	if m.header != nil {
		b.WriteString(m.styler.render(m.header))
		b.WriteByte('\n')
	}
	b.WriteString(m.styler.render(m.surface))
	b.WriteByte('\n')
	if m.showHelp {
		b.WriteString(m.help.View(keys))
	} else {
		b.WriteString(m.statusBar())
	}
	return b.String()
}

func (m *monitor) titleBar() string {
	title := titleStyle.Render("telemon monitor")
	info := dimStyle.Render(fmt.Sprintf(" %s | device_%d | %s view", m.target, m.feed.Device(), m.mode))
	return title + info
}

func (m *monitor) statusBar() string {
	st, ok := stateStyle[m.state]
	if !ok {
		st = dimStyle
	}
	applied, rejected := m.feed.Counts()
	visible := m.renderer.Visible()
	scroll := m.renderer.State()

	status := st.Render(m.state.String()) + dimStyle.Render(fmt.Sprintf(
		" | %d registers | rows %d-%d | offset %.0f | %d payloads, %d rejected, %d dropped | ? help",
		m.store.Len(), visible.Start, visible.End, scroll.Render, applied, rejected, m.store.Dropped()))
	if m.err != nil {
		status += " " + errStyle.Render(m.err.Error())
	}
	return status
}
