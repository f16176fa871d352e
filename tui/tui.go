// Package tui is a terminal surface for the live simulation: the frame is drawn
// as a character grid and mouse input drives the interaction controller.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/TFMV/echoview/interaction"
	"github.com/TFMV/echoview/loader"
	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/models"
	"github.com/TFMV/echoview/render"
	"github.com/TFMV/echoview/simulation"
)

// Screen pixels per terminal cell; the controller works in pixels
const (
	cellWidth  = 8
	cellHeight = 16
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	bar    = lipgloss.NewStyle().Background(lipgloss.Color("236"))
)

// Deps are the collaborators the terminal surface drives
type Deps struct {
	Driver     *simulation.Driver
	Controller *interaction.Controller
	Loader     *loader.Loader
	Graphs     []models.GraphSummary
	NodeRadius float64
}

type tickMsg time.Time

type loadDoneMsg struct{ err error }

func tick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the bubbletea model of the viewer
type Model struct {
	deps    Deps
	ctx     context.Context
	encoder *render.ASCIIEncoder
	opts    render.Options

	width  int
	height int

	graph   int // index into deps.Graphs of the last requested graph
	status  loader.Status
	lastErr error
}

// New creates a viewer model; ctx bounds loads started from the keyboard
func New(ctx context.Context, deps Deps) Model {
	opts := render.DefaultOptions()
	opts.Border = false
	m := Model{
		deps:   deps,
		ctx:    ctx,
		opts:   opts,
		width:  80,
		height: 24,
		graph:  -1,
	}
	if deps.Loader != nil {
		m.status = deps.Loader.Status()
		for i, g := range deps.Graphs {
			if g.GUID == m.status.GraphGUID {
				m.graph = i
			}
		}
	}
	m.resize(m.width, m.height)
	return m
}

func (m Model) Init() tea.Cmd { return tick() }

// resize fits the grid to the terminal, keeping the last row for the status bar
func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.opts.Cols = max(width, 1)
	m.opts.Rows = max(height-1, 1)
	m.encoder = render.NewASCIIEncoder(m.opts)
	m.deps.Controller.Resize(float64(m.opts.Cols*cellWidth), float64(m.opts.Rows*cellHeight))
}

func (m Model) grid() render.Grid {
	v := m.deps.Controller.Viewport()
	return m.encoder.Grid(v.Width, v.Height)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case loadDoneMsg:
		m.lastErr = msg.err
		return m, nil
	case tickMsg:
		if m.deps.Loader != nil {
			m.status = m.deps.Loader.Status()
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.deps.Controller
	v := c.Viewport()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "f":
		c.Fit(float64(2 * cellHeight))
	case "0":
		c.ResetView()
	case "+", "=":
		c.Pinch(v.Width/2, v.Height/2, 1.25)
	case "-":
		c.Pinch(v.Width/2, v.Height/2, 0.8)
	case "esc":
		c.PointerCancel()
	case "n", "tab":
		return m.loadNext(1)
	case "p", "shift+tab":
		return m.loadNext(-1)
	case "r":
		if m.deps.Loader == nil {
			return m, nil
		}
		l, ctx := m.deps.Loader, m.ctx
		return m, func() tea.Msg { return loadDoneMsg{err: l.Retry(ctx)} }
	case "x":
		if m.deps.Loader != nil {
			m.deps.Loader.Cancel()
		}
	case "enter":
		sel := c.Selected()
		if sel.Kind == interaction.SelectNode {
			m.lastErr = c.Focus(sel.ID, v.Scale)
		}
	}
	return m, nil
}

// loadNext switches to the neighbouring graph in the list
func (m Model) loadNext(step int) (tea.Model, tea.Cmd) {
	if m.deps.Loader == nil || len(m.deps.Graphs) == 0 {
		return m, nil
	}
	n := len(m.deps.Graphs)
	m.graph = ((m.graph+step)%n + n) % n
	guid := m.deps.Graphs[m.graph].GUID
	m.deps.Loader.Start(m.ctx, guid)
	m.lastErr = nil
	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	c := m.deps.Controller
	sx, sy := m.grid().Point(msg.X, msg.Y)

	var err error
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		c.Wheel(sx, sy, -1)
	case msg.Button == tea.MouseButtonWheelDown:
		c.Wheel(sx, sy, 1)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		err = c.PointerDown(sx, sy)
	case msg.Action == tea.MouseActionMotion:
		err = c.PointerMove(sx, sy)
	case msg.Action == tea.MouseActionRelease:
		err = c.PointerUp(sx, sy)
	}
	if err != nil {
		logging.Debug("pointer event rejected", "error", err)
		m.lastErr = err
	}
}

func (m Model) View() string {
	c := m.deps.Controller
	frame := m.deps.Driver.Snapshot()
	a := render.Adapter{
		NodeRadius: m.deps.NodeRadius,
		Highlight:  render.Highlight{Hovered: c.Hovered(), Selected: c.Selected()},
	}
	lines := m.encoder.Lines(a.Primitives(frame, c.Viewport()))

	var b strings.Builder
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	b.WriteString(m.statusBar(frame))
	return b.String()
}

func (m Model) statusBar(frame models.Frame) string {
	parts := []string{cyan.Render("echoview")}

	if m.graph >= 0 && m.graph < len(m.deps.Graphs) {
		g := m.deps.Graphs[m.graph]
		name := g.Name
		if name == "" {
			name = g.GUID
		}
		parts = append(parts, name)
	}

	switch m.status.State {
	case loader.Loading:
		parts = append(parts, yellow.Render(fmt.Sprintf("loading %d/%d", m.status.NodesLoaded, m.status.EdgesLoaded)))
	case loader.Failed:
		parts = append(parts, red.Render("failed: "+m.status.Error))
	case loader.Loaded, loader.Canceled:
		parts = append(parts, green.Render(string(m.status.State)))
	}

	parts = append(parts, fmt.Sprintf("%d nodes %d edges", len(frame.Nodes), len(frame.Edges)))
	if frame.Settled {
		parts = append(parts, dim.Render("settled"))
	}
	parts = append(parts, fmt.Sprintf("%.0f%%", m.deps.Controller.Viewport().Scale*100))

	if sel := m.deps.Controller.Selected(); sel.ID != "" {
		parts = append(parts, yellow.Render(fmt.Sprintf("%s %s", sel.Kind, sel.ID)))
	}
	if m.lastErr != nil {
		parts = append(parts, red.Render(m.lastErr.Error()))
	}
	parts = append(parts, dim.Render("q quit · n/p graph · r retry · f fit · 0 reset · +/- zoom"))

	return bar.Width(m.width).MaxWidth(m.width).MaxHeight(1).Render(strings.Join(parts, dim.Render(" · ")))
}

// Run shows the viewer until the user quits or ctx ends
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(New(ctx, deps),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal viewer: %w", err)
	}
	return nil
}
