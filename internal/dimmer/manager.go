package dimmer

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/umbradim/umbra/internal/capture"
	"github.com/umbradim/umbra/internal/config"
	"github.com/umbradim/umbra/internal/errors"
	"github.com/umbradim/umbra/internal/history"
	"github.com/umbradim/umbra/internal/metrics"
	"github.com/umbradim/umbra/internal/overlay"
	"github.com/umbradim/umbra/internal/resilience"
	"github.com/umbradim/umbra/internal/syncx"
)

// Manager owns the monitor sessions and drives the control loop. All
// mutation of the session set and the per-session opacity fields happens
// under one mutex, so reconciliation and ticking never interleave; the
// pause flag is atomic and polled once per tick.
type Manager struct {
	cfg        *config.Config
	controller *Controller
	capturer   capture.Capturer
	overlays   overlay.Manager
	detector   *capture.Detector
	clock      clockwork.Clock
	feed       *history.Feed
	sinks      []history.Sink

	strength *syncx.RWGuard[float64]
	paused   atomic.Bool

	mu       sync.Mutex
	sessions map[int]*Session

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	// loop-goroutine only
	lastStatus, lastSample time.Time
}

// New creates a manager. Configuration is validated here: an invalid
// config is fatal before the loop ever runs, never at runtime.
func New(cfg *config.Config, capturer capture.Capturer, overlays overlay.Manager, clock clockwork.Clock, sinks ...history.Sink) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:        cfg,
		controller: NewController(cfg),
		capturer:   capturer,
		overlays:   overlays,
		clock:      clock,
		feed:       history.NewFeed(cfg.HistoryPoints, FeedEventBuffer),
		sinks:      sinks,
		strength:   syncx.NewGuard(cfg.Strength),
		sessions:   make(map[int]*Session),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	if cfg.ChangeDetect {
		m.detector = capture.NewDetector(capture.MaxHashDistance)
	}
	return m, nil
}

// Feed returns the status feed the loop publishes to.
func (m *Manager) Feed() *history.Feed { return m.feed }

// Controller returns the opacity controller.
func (m *Manager) Controller() *Controller { return m.controller }

// SetActiveMonitors reconciles the session set against the requested ids.
// Invalid ids fall back to the first display before diffing, so the
// invariant of one session per physical monitor holds even for bogus
// input. Idempotent: an unchanged set performs no overlay calls. Overlay
// creation failure excludes that monitor and is reported; the rest of
// the set still applies.
func (m *Manager) SetActiveMonitors(ctx context.Context, ids []int) error {
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		resolved := m.capturer.Resolve(id)
		if resolved != id {
			slog.Warn("monitor id out of range, falling back to first display", "requested", id, "resolved", resolved)
		}
		want[resolved] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if _, keep := want[id]; keep {
			continue
		}
		s.state = StateIdle
		if err := m.overlays.Destroy(s.handle); err != nil {
			metrics.OverlayErrors.WithLabelValues("destroy").Inc()
			slog.Warn("overlay destroy failed", "monitor", id, "error", err)
		}
		if m.detector != nil {
			m.detector.Forget(id)
		}
		delete(m.sessions, id)
		slog.Info("monitor session removed", "monitor", id)
	}

	var failed []string
	for id := range want {
		if _, ok := m.sessions[id]; ok {
			continue
		}

		var handle overlay.Handle
		err := resilience.Retry(ctx, resilience.OverlayRetryConfig(), func() error {
			var err error
			handle, err = m.overlays.Create(id)
			return err
		})
		if err != nil {
			metrics.OverlayErrors.WithLabelValues("create").Inc()
			slog.Error("overlay creation failed, monitor excluded", "monitor", id, "error", err)
			failed = append(failed, strconv.Itoa(id))
			continue
		}

		s := &Session{monitorID: id, handle: handle, state: StateActive}
		if m.paused.Load() {
			s.state = StatePaused
		}
		m.sessions[id] = s
		slog.Info("monitor session created", "monitor", id)
	}

	metrics.ActiveSessions.Set(float64(len(m.sessions)))

	if len(failed) > 0 {
		return errors.Newf(errors.CodeOverlayCreateFailed, "overlay creation failed for %d monitor(s)", len(failed)).
			WithMetadata("monitors", strings.Join(failed, ","))
	}
	return nil
}

// ActiveMonitors returns the ids with a live session, unordered.
func (m *Manager) ActiveMonitors() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// Status is the manager-level snapshot for the API surface.
type Status struct {
	Paused   bool            `json:"paused"`
	Strength float64         `json:"strength"`
	Displays int             `json:"displays"`
	Sessions []SessionStatus `json:"sessions"`
	Config   config.Config   `json:"config"`
}

// Snapshot returns a consistent view of the manager state.
func (m *Manager) Snapshot() Status {
	m.mu.Lock()
	sessions := make([]SessionStatus, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s.status())
	}
	m.mu.Unlock()

	return Status{
		Paused:   m.paused.Load(),
		Strength: m.strength.Get(),
		Displays: m.capturer.Monitors(),
		Sessions: sessions,
		Config:   *m.cfg,
	}
}

// Pause clears every overlay immediately and holds them clear. The loop
// keeps ticking so Resume takes effect within one interval.
func (m *Manager) Pause() {
	if m.paused.Swap(true) {
		return
	}

	m.mu.Lock()
	for _, s := range m.sessions {
		m.controller.ForceImmediate(s, 0)
		s.state = StatePaused
		if err := m.overlays.SetOpacity(s.handle, 0); err != nil {
			metrics.OverlayErrors.WithLabelValues("set").Inc()
			slog.Warn("overlay clear failed on pause", "monitor", s.monitorID, "error", err)
		}
	}
	m.mu.Unlock()
	slog.Info("dimming paused")
}

// Resume lets sessions converge back toward their targets.
func (m *Manager) Resume() {
	if !m.paused.Swap(false) {
		return
	}

	m.mu.Lock()
	for _, s := range m.sessions {
		s.state = StateActive
	}
	m.mu.Unlock()
	slog.Info("dimming resumed")
}

// Paused reports whether dimming is paused.
func (m *Manager) Paused() bool { return m.paused.Load() }

// SetStrength updates the runtime dim-intensity multiplier.
func (m *Manager) SetStrength(v float64) error {
	if v < 0 || v > 1 {
		return errors.Newf(errors.CodeInvalidArgument, "strength %.2f must be in [0,1]", v)
	}
	m.strength.Set(v)
	slog.Info("dim strength changed", "strength", v)
	return nil
}

// Strength returns the current dim-intensity multiplier.
func (m *Manager) Strength() float64 { return m.strength.Get() }

// Stop shuts the loop down in order: no new ticks, wait out the
// in-flight tick, then destroy every overlay. Tolerates sessions whose
// overlay never came up and being called before Run.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.started.Load() {
		<-m.done
	}

	m.mu.Lock()
	for id, s := range m.sessions {
		s.state = StateIdle
		if s.handle != nil {
			if err := m.overlays.Destroy(s.handle); err != nil {
				slog.Warn("overlay destroy failed on shutdown", "monitor", id, "error", err)
			}
		}
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	m.overlays.DestroyAll()
	metrics.ActiveSessions.Set(0)
	slog.Info("dimmer stopped")
}
