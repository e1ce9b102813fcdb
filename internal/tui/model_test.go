package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/umbradim/umbra/internal/client"
	"github.com/umbradim/umbra/internal/dimmer"
	"github.com/umbradim/umbra/internal/history"
)

func testModel() Model {
	return New(client.New("http://localhost:8686"))
}

func TestViewShowsWaitingBeforeFirstBatch(t *testing.T) {
	m := testModel()
	if !strings.Contains(m.View(), "waiting for status") {
		t.Error("empty model view should show the waiting line")
	}
}

func TestBatchUpdatesRowsAndSparks(t *testing.T) {
	m := testModel()
	ch := make(chan history.Batch, 1)
	next, _ := m.Update(watchStartedMsg{ch: ch})
	m = next.(Model)

	batch := history.Batch{
		Time: time.Now(),
		Reports: []history.Report{
			{MonitorID: 1, Brightness: 200, Opacity: 240, Dimmed: 14.1},
			{MonitorID: 2, Brightness: 40, Opacity: 0, Dimmed: 40},
		},
	}
	next, cmd := m.Update(batchMsg(batch))
	m = next.(Model)
	if cmd == nil {
		t.Error("batch update should re-arm the watch command")
	}

	view := m.View()
	if !strings.Contains(view, "monitor 1") || !strings.Contains(view, "monitor 2") {
		t.Errorf("view missing monitor rows:\n%s", view)
	}
	if len(m.sparks[1]) != 1 {
		t.Errorf("spark points for monitor 1 = %d, want 1", len(m.sparks[1]))
	}
}

func TestSparkWindowBounded(t *testing.T) {
	m := testModel()
	ch := make(chan history.Batch, 1)
	next, _ := m.Update(watchStartedMsg{ch: ch})
	m = next.(Model)

	for i := 0; i < sparkPoints*2; i++ {
		next, _ := m.Update(batchMsg(history.Batch{
			Reports: []history.Report{{MonitorID: 1, Brightness: float64(i % 255)}},
		}))
		m = next.(Model)
	}
	if got := len(m.sparks[1]); got != sparkPoints {
		t.Errorf("spark points = %d, want bounded at %d", got, sparkPoints)
	}
}

func TestPausedHeader(t *testing.T) {
	m := testModel()
	next, _ := m.Update(statusMsg(dimmer.Status{Paused: true, Strength: 0.5, Displays: 1}))
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "paused") {
		t.Errorf("view should show paused state:\n%s", view)
	}
	if !strings.Contains(view, "strength 50%") {
		t.Errorf("view should show strength percent:\n%s", view)
	}
}

func TestQuitKey(t *testing.T) {
	m := testModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should produce a command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("q produced %v, want tea.Quit", msg)
	}
}

func TestOpacityBar(t *testing.T) {
	if got := opacityBar(0, 10); got != strings.Repeat("░", 10) {
		t.Errorf("opacityBar(0) = %q, want all empty", got)
	}
	if got := opacityBar(255, 10); got != strings.Repeat("█", 10) {
		t.Errorf("opacityBar(255) = %q, want all filled", got)
	}
	got := opacityBar(127.5, 10)
	if strings.Count(got, "█") != 5 {
		t.Errorf("opacityBar(127.5) = %q, want half filled", got)
	}
}

func TestSparklineClamps(t *testing.T) {
	line := sparkline([]float64{-5, 0, 255, 300})
	runes := []rune(line)
	if len(runes) != 4 {
		t.Fatalf("sparkline length = %d, want 4", len(runes))
	}
	if runes[0] != sparkRunes[0] || runes[3] != sparkRunes[len(sparkRunes)-1] {
		t.Errorf("sparkline = %q, want clamped ends", line)
	}
}
