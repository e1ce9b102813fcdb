package dimmer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/umbradim/umbra/internal/history"
)

// recordingSink captures everything recorded to it.
type recordingSink struct {
	mu      sync.Mutex
	samples []history.Sample
}

func (r *recordingSink) Record(samples []history.Sample) error {
	r.mu.Lock()
	r.samples = append(r.samples, samples...)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func TestRunEmitsStatusAtCoarseCadence(t *testing.T) {
	cfg := testConfig()
	cfg.ChangeDetect = false
	overlays := newFakeOverlays()
	capturer := newFakeCapturer(1, overlays)
	capturer.setBrightness(1, 200)
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{}

	m, err := New(cfg, capturer, overlays, clock, sink)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := m.SetActiveMonitors(context.Background(), []int{1}); err != nil {
		t.Fatalf("SetActiveMonitors: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// Wait for the loop's ticker to register, then walk the clock past
	// the status cadence one tick at a time.
	clock.BlockUntil(1)
	interval := cfg.TickInterval()
	steps := int(cfg.StatusEvery()/interval) + 1
	for i := 0; i < steps; i++ {
		clock.Advance(interval)
	}

	select {
	case batch := <-m.Feed().Events():
		if len(batch.Reports) != 1 {
			t.Fatalf("batch has %d reports, want 1", len(batch.Reports))
		}
		rep := batch.Reports[0]
		if rep.MonitorID != 1 {
			t.Errorf("report monitor = %d, want 1", rep.MonitorID)
		}
		if rep.Opacity <= 0 {
			t.Errorf("report opacity = %v, want > 0 after bright ticks", rep.Opacity)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status batch emitted within status cadence")
	}

	// The sample cadence is finer than the status cadence, so by now the
	// sink has been written at least once.
	if sink.count() == 0 {
		t.Error("sink received no samples after status cadence elapsed")
	}

	m.Stop()
}

func TestRunStopsOnContextCancel(t *testing.T) {
	m, _, _ := newTestManager(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(doneCh)
	}()

	cancel()
	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
