package dimmer

import (
	"math"
	"testing"

	"github.com/umbradim/umbra/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.ThresholdStart = 25
	cfg.ThresholdMax = 100
	cfg.MaxOpacity = 240
	cfg.EasingFactor = 0.15
	cfg.Strength = 1.0
	return cfg
}

func TestTargetBelowThresholdIsZero(t *testing.T) {
	c := NewController(testConfig())

	for _, b := range []float64{0, 10, 24.9, 25} {
		if got := c.Target(b, 1); got != 0 {
			t.Errorf("Target(%v) = %v, want 0", b, got)
		}
	}
}

func TestTargetAtOrAboveMaxIsCap(t *testing.T) {
	c := NewController(testConfig())

	for _, b := range []float64{100, 150, 255} {
		if got := c.Target(b, 1); got != 240 {
			t.Errorf("Target(%v) = %v, want 240", b, got)
		}
	}
}

func TestTargetMidpoint(t *testing.T) {
	c := NewController(testConfig())

	// Midpoint of [25,100] maps to half the cap.
	if got := c.Target(62.5, 1); math.Abs(got-120) > 1e-9 {
		t.Errorf("Target(62.5) = %v, want 120", got)
	}
}

func TestTargetLinearAndMonotonic(t *testing.T) {
	c := NewController(testConfig())

	prev := -1.0
	for b := 25.0; b < 100; b += 0.5 {
		got := c.Target(b, 1)
		if got < prev {
			t.Fatalf("Target(%v) = %v decreased from %v", b, got, prev)
		}
		want := 240 * (b - 25) / 75
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("Target(%v) = %v, want %v", b, got, want)
		}
		prev = got
	}
}

func TestTargetStrengthScaling(t *testing.T) {
	c := NewController(testConfig())

	if got := c.Target(200, 0.5); got != 120 {
		t.Errorf("Target(200, strength 0.5) = %v, want 120", got)
	}
	if got := c.Target(200, 0); got != 0 {
		t.Errorf("Target(200, strength 0) = %v, want 0", got)
	}
	if got := c.Target(62.5, 0.5); math.Abs(got-60) > 1e-9 {
		t.Errorf("Target(62.5, strength 0.5) = %v, want 60", got)
	}
}

func TestStepConvergesWithoutOvershoot(t *testing.T) {
	c := NewController(testConfig())
	s := &Session{monitorID: 1, state: StateActive}

	// Constant bright input; target is the cap.
	prev := 0.0
	for i := 0; i < 200; i++ {
		got := c.Step(s, 200, 1)
		if got > 240 {
			t.Fatalf("step %d overshot: opacity %v > 240", i, got)
		}
		if got < prev {
			t.Fatalf("step %d oscillated: opacity %v < previous %v", i, got, prev)
		}
		prev = got
	}
	if s.current != 240 {
		t.Errorf("opacity after 200 steps = %v, want exactly 240 (snap)", s.current)
	}
}

func TestStepConvergesDownward(t *testing.T) {
	c := NewController(testConfig())
	s := &Session{monitorID: 1, state: StateActive, current: 240, target: 240}

	prev := 240.0
	for i := 0; i < 200; i++ {
		got := c.Step(s, 0, 1)
		if got < 0 {
			t.Fatalf("step %d overshot below zero: %v", i, got)
		}
		if got > prev {
			t.Fatalf("step %d oscillated: %v > previous %v", i, got, prev)
		}
		prev = got
	}
	if s.current != 0 {
		t.Errorf("opacity after decay = %v, want 0", s.current)
	}
}

func TestStepRecordsBrightness(t *testing.T) {
	c := NewController(testConfig())
	s := &Session{monitorID: 1, state: StateActive}

	c.Step(s, 77, 1)
	if s.lastBrightness != 77 {
		t.Errorf("lastBrightness = %v, want 77", s.lastBrightness)
	}
}

func TestForceImmediate(t *testing.T) {
	c := NewController(testConfig())
	s := &Session{monitorID: 1, state: StateActive, current: 180, target: 200}

	if got := c.ForceImmediate(s, 0); got != 0 {
		t.Errorf("ForceImmediate(0) = %v, want 0", got)
	}
	if s.current != 0 || s.target != 0 {
		t.Errorf("session after force = (%v, %v), want (0, 0)", s.current, s.target)
	}

	c.ForceImmediate(s, 300)
	if s.current != 255 {
		t.Errorf("ForceImmediate clamps to 255, got %v", s.current)
	}
}
