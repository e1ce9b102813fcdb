// Package tui renders the live dashboard for a running daemon.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/umbradim/umbra/internal/client"
	"github.com/umbradim/umbra/internal/dimmer"
	"github.com/umbradim/umbra/internal/history"
)

const (
	// sparkPoints is how many brightness points each monitor row keeps.
	sparkPoints = 40

	// strengthStep is the +/- keybinding increment.
	strengthStep = 0.1
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// ─── messages ────────────────────────────────────────────────────────────────

type batchMsg history.Batch

type statusMsg dimmer.Status

type watchStartedMsg struct{ ch <-chan history.Batch }

type watchClosedMsg struct{}

type errMsg struct{ err error }

// ─── key bindings ────────────────────────────────────────────────────────────

type keyMap struct {
	Pause    key.Binding
	Resume   key.Binding
	Stronger key.Binding
	Weaker   key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Resume, k.Stronger, k.Weaker, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Pause:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
	Resume:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resume")),
	Stronger: key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "stronger")),
	Weaker:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "weaker")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ─── styles ──────────────────────────────────────────────────────────────────

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("61"))
	sparkStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the dashboard state, fed by the daemon's status stream.
type Model struct {
	client *client.Client
	help   help.Model

	status  dimmer.Status
	batch   history.Batch
	sparks  map[int][]float64
	watchCh <-chan history.Batch
	err     error
}

// New creates a dashboard model talking to the given daemon client.
func New(c *client.Client) Model {
	return Model{
		client: c,
		help:   help.New(),
		sparks: make(map[int][]float64),
	}
}

// Init starts the status fetch and the stream subscription.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), m.startWatch())
}

func (m Model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		st, err := m.client.Status(ctx)
		if err != nil {
			return errMsg{err}
		}
		return statusMsg(st)
	}
}

func (m Model) startWatch() tea.Cmd {
	return func() tea.Msg {
		ch, err := m.client.WatchStatus(context.Background())
		if err != nil {
			return errMsg{err}
		}
		return watchStartedMsg{ch: ch}
	}
}

func waitForBatch(ch <-chan history.Batch) tea.Cmd {
	return func() tea.Msg {
		b, ok := <-ch
		if !ok {
			return watchClosedMsg{}
		}
		return batchMsg(b)
	}
}

// controlCmd runs a daemon call and refreshes the snapshot afterward.
func (m Model) controlCmd(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			return errMsg{err}
		}
		st, err := m.client.Status(ctx)
		if err != nil {
			return errMsg{err}
		}
		return statusMsg(st)
	}
}

// Update handles stream batches, snapshot refreshes, and keybindings.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = dimmer.Status(msg)
		m.err = nil
		return m, nil

	case watchStartedMsg:
		m.watchCh = msg.ch
		return m, waitForBatch(m.watchCh)

	case batchMsg:
		m.batch = history.Batch(msg)
		m.err = nil
		for _, r := range m.batch.Reports {
			pts := append(m.sparks[r.MonitorID], r.Brightness)
			if len(pts) > sparkPoints {
				pts = pts[len(pts)-sparkPoints:]
			}
			m.sparks[r.MonitorID] = pts
		}
		m.status.Paused = m.batch.Paused
		return m, waitForBatch(m.watchCh)

	case watchClosedMsg:
		m.err = fmt.Errorf("status stream closed")
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			return m, m.controlCmd(m.client.Pause)
		case key.Matches(msg, keys.Resume):
			return m, m.controlCmd(m.client.Resume)
		case key.Matches(msg, keys.Stronger):
			v := clampStrength(m.status.Strength + strengthStep)
			return m, m.controlCmd(func(ctx context.Context) error {
				return m.client.SetStrength(ctx, v)
			})
		case key.Matches(msg, keys.Weaker):
			v := clampStrength(m.status.Strength - strengthStep)
			return m, m.controlCmd(func(ctx context.Context) error {
				return m.client.SetStrength(ctx, v)
			})
		}
	}
	return m, nil
}

func clampStrength(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// View renders the header, one row per monitor, and the help bar.
func (m Model) View() string {
	var b strings.Builder

	state := activeStyle.Render("dimming")
	if m.status.Paused {
		state = pausedStyle.Render("paused")
	}
	b.WriteString(titleStyle.Render("umbra"))
	b.WriteString("  ")
	b.WriteString(state)
	b.WriteString(labelStyle.Render(fmt.Sprintf("  strength %.0f%%  displays %d", m.status.Strength*100, m.status.Displays)))
	b.WriteString("\n\n")

	if len(m.batch.Reports) == 0 {
		b.WriteString(labelStyle.Render("waiting for status..."))
		b.WriteString("\n")
	}
	for _, r := range m.batch.Reports {
		b.WriteString(m.monitorRow(r))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) monitorRow(r history.Report) string {
	bar := opacityBar(r.Opacity, 20)
	spark := sparkline(m.sparks[r.MonitorID])
	return fmt.Sprintf("%s %s %s %s %s",
		labelStyle.Render(fmt.Sprintf("monitor %d", r.MonitorID)),
		barStyle.Render(bar),
		labelStyle.Render(fmt.Sprintf("opacity %5.1f  brightness %5.1f", r.Opacity, r.Brightness)),
		sparkStyle.Render(spark),
		labelStyle.Render(fmt.Sprintf("dimmed %5.1f", r.Dimmed)),
	)
}

// opacityBar renders opacity 0-255 as a fixed-width bar.
func opacityBar(opacity float64, width int) string {
	filled := int(opacity/255*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// sparkline renders brightness points 0-255 as one rune each.
func sparkline(points []float64) string {
	if len(points) == 0 {
		return strings.Repeat(" ", sparkPoints)
	}
	var b strings.Builder
	for _, p := range points {
		idx := int(p / 256 * float64(len(sparkRunes)))
		if idx >= len(sparkRunes) {
			idx = len(sparkRunes) - 1
		}
		if idx < 0 {
			idx = 0
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

// Run starts the dashboard program.
func Run(c *client.Client) error {
	_, err := tea.NewProgram(New(c), tea.WithAltScreen()).Run()
	return err
}
