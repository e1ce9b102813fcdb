package dimmer

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/umbradim/umbra/internal/history"
	"github.com/umbradim/umbra/internal/luminance"
	"github.com/umbradim/umbra/internal/metrics"
)

// Run drives ticks at the configured interval until the context is
// cancelled or Stop is called. One iteration runs at a time; a tick that
// overruns the interval just starts the next one late.
func (m *Manager) Run(ctx context.Context) {
	m.started.Store(true)
	defer close(m.done)

	now := m.clock.Now()
	m.lastStatus = now
	m.lastSample = now

	ticker := m.clock.NewTicker(m.cfg.TickInterval())
	defer ticker.Stop()

	slog.Info("control loop started",
		"interval", m.cfg.TickInterval(),
		"threshold_start", m.cfg.ThresholdStart,
		"threshold_max", m.cfg.ThresholdMax,
		"max_opacity", m.cfg.MaxOpacity)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.Chan():
			m.tick(ctx)
		}
	}
}

// tick processes every session once. Monitors are independent: a capture
// or overlay failure on one never touches another's update in the same
// pass.
func (m *Manager) tick(ctx context.Context) {
	start := m.clock.Now()
	paused := m.paused.Load()

	m.mu.Lock()
	ids := make([]int, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	reports := make([]history.Report, 0, len(ids))
	changed := false
	for _, id := range ids {
		rep, frameChanged, ok := m.tickMonitor(ctx, id, paused)
		if !ok {
			continue
		}
		reports = append(reports, rep)
		changed = changed || frameChanged
	}

	metrics.TicksTotal.Inc()
	metrics.TickDuration.Observe(m.clock.Since(start).Seconds())
	m.report(reports, paused, changed)
}

// tickMonitor runs capture -> estimate -> step -> actuate for one
// session. Capture happens without the session lock; the step and the
// overlay push hold it so reconciliation can never destroy the handle
// mid-write.
func (m *Manager) tickMonitor(ctx context.Context, id int, paused bool) (history.Report, bool, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return history.Report{}, false, false
	}
	applied := s.current
	brightness := s.lastBrightness
	m.mu.Unlock()

	if paused {
		return history.Report{
			MonitorID:  id,
			Brightness: brightness,
			Opacity:    applied,
			Dimmed:     luminance.Dimmed(brightness, applied),
		}, false, true
	}

	frame, err := m.capturer.Frame(id)
	if err != nil {
		// Stale opacity retained; retried next tick.
		metrics.CaptureErrors.WithLabelValues(strconv.Itoa(id)).Inc()
		slog.Warn("frame capture failed, skipping monitor this tick", "monitor", id, "error", err)
		return history.Report{}, false, false
	}

	frameChanged := true
	if m.detector != nil {
		frameChanged = m.detector.Changed(id, frame)
	}

	m.mu.Lock()
	s, ok = m.sessions[id]
	if !ok || s.state != StateActive {
		m.mu.Unlock()
		return history.Report{}, false, false
	}
	brightness = s.estimator.Estimate(frame, s.current)
	newOpacity := m.controller.Step(s, brightness, m.strength.Get())
	handle := s.handle
	setErr := m.overlays.SetOpacity(handle, uint8(newOpacity+0.5))
	m.mu.Unlock()

	if setErr != nil {
		// Not fatal: the session keeps its state and the push is
		// retried next tick.
		metrics.OverlayErrors.WithLabelValues("set").Inc()
		slog.Warn("overlay opacity push failed", "monitor", id, "error", setErr)
	}

	label := strconv.Itoa(id)
	metrics.Brightness.WithLabelValues(label).Set(brightness)
	metrics.Opacity.WithLabelValues(label).Set(newOpacity)

	return history.Report{
		MonitorID:  id,
		Brightness: brightness,
		Opacity:    newOpacity,
		Dimmed:     luminance.Dimmed(brightness, newOpacity),
	}, frameChanged, true
}

// report publishes status at the coarse cadence and samples to the sinks
// at the sample cadence. Both are best-effort and off the correctness
// path of the tick.
func (m *Manager) report(reports []history.Report, paused, changed bool) {
	now := m.clock.Now()

	if now.Sub(m.lastStatus) >= m.cfg.StatusEvery() {
		m.lastStatus = now
		m.feed.Emit(history.Batch{Time: now, Paused: paused, Reports: reports})
		for _, r := range reports {
			slog.Debug("monitor status",
				"monitor", r.MonitorID,
				"brightness", r.Brightness,
				"opacity", r.Opacity,
				"dimmed", r.Dimmed)
		}
	}

	if len(m.sinks) == 0 || paused || len(reports) == 0 {
		return
	}
	if now.Sub(m.lastSample) < m.cfg.SampleEvery() {
		return
	}
	// A static screen produces no new information worth persisting.
	if m.detector != nil && !changed {
		return
	}
	m.lastSample = now

	samples := make([]history.Sample, len(reports))
	for i, r := range reports {
		samples[i] = history.Sample{
			Time:       now,
			MonitorID:  r.MonitorID,
			Brightness: r.Brightness,
			Opacity:    r.Opacity,
			Dimmed:     r.Dimmed,
		}
	}
	for _, sink := range m.sinks {
		if err := sink.Record(samples); err != nil {
			metrics.HistoryDropped.Add(float64(len(samples)))
			slog.Warn("history sink write failed", "error", err)
		}
	}
}
