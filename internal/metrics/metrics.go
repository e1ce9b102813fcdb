// Package metrics exposes Prometheus collectors for the control loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Brightness is the latest estimated true brightness per monitor (0-255).
	Brightness = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "umbra_brightness",
			Help: "Estimated true screen brightness per monitor (0-255)",
		},
		[]string{"monitor"},
	)

	// Opacity is the overlay alpha currently applied per monitor (0-255).
	Opacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "umbra_opacity",
			Help: "Overlay opacity currently applied per monitor (0-255)",
		},
		[]string{"monitor"},
	)

	// ActiveSessions is the number of monitors currently being dimmed.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "umbra_active_sessions",
			Help: "Number of monitors with a live dimming session",
		},
	)

	// TicksTotal counts completed control loop ticks.
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "umbra_ticks_total",
			Help: "Total control loop ticks",
		},
	)

	// CaptureErrors counts per-monitor capture failures.
	CaptureErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "umbra_capture_errors_total",
			Help: "Frame capture failures per monitor",
		},
		[]string{"monitor"},
	)

	// OverlayErrors counts overlay operation failures by operation.
	OverlayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "umbra_overlay_errors_total",
			Help: "Overlay create/set/destroy failures by operation",
		},
		[]string{"operation"},
	)

	// TickDuration tracks how long a full tick takes across all monitors.
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "umbra_tick_duration_seconds",
			Help:    "Control loop tick duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
	)

	// HistoryDropped counts samples lost to sink failures or an open breaker.
	HistoryDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "umbra_history_dropped_total",
			Help: "History samples dropped instead of written",
		},
	)
)
