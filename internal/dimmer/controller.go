package dimmer

import (
	"math"

	"github.com/umbradim/umbra/internal/config"
)

// Controller maps estimated true brightness to overlay opacity and eases
// the applied value toward it. Stateless apart from the config it was
// built from; all mutable state lives in the sessions it steps.
type Controller struct {
	thresholdStart float64
	thresholdMax   float64
	maxOpacity     float64
	easing         float64
}

// NewController builds a controller from validated configuration.
func NewController(cfg *config.Config) *Controller {
	return &Controller{
		thresholdStart: cfg.ThresholdStart,
		thresholdMax:   cfg.ThresholdMax,
		maxOpacity:     cfg.MaxOpacity,
		easing:         cfg.EasingFactor,
	}
}

// Target returns the opacity a brightness maps to under the given
// strength multiplier: 0 below the start threshold, the effective cap at
// or above the max threshold, linear in between.
func (c *Controller) Target(brightness, strength float64) float64 {
	cap := c.maxOpacity * strength
	switch {
	case brightness >= c.thresholdMax:
		return cap
	case brightness > c.thresholdStart:
		t := cap * (brightness - c.thresholdStart) / (c.thresholdMax - c.thresholdStart)
		if t < 0 {
			return 0
		}
		if t > cap {
			return cap
		}
		return t
	default:
		return 0
	}
}

// Step advances the session one tick toward the target for this
// brightness and returns the new applied opacity. Easing is a
// contraction: repeated steps converge without overshoot, and snap once
// within SnapThreshold so convergence is finite.
func (c *Controller) Step(s *Session, brightness, strength float64) float64 {
	s.lastBrightness = brightness
	s.target = c.Target(brightness, strength)

	diff := s.target - s.current
	if math.Abs(diff) <= SnapThreshold {
		s.current = s.target
	} else {
		s.current += c.easing * diff
	}
	return s.current
}

// ForceImmediate bypasses easing and pins the session at target. Used
// where an instant, unambiguous state is required: pause, resume, and
// monitor-set switches.
func (c *Controller) ForceImmediate(s *Session, target float64) float64 {
	if target < 0 {
		target = 0
	} else if target > 255 {
		target = 255
	}
	s.target = target
	s.current = target
	return target
}
