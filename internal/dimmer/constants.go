// Package dimmer runs the adaptive dimming control loop.
package dimmer

// Control loop constants
const (
	// SnapThreshold is the opacity distance below which easing snaps to
	// target, so convergence terminates instead of asymptoting forever.
	SnapThreshold = 1.0

	// FeedEventBuffer is the status feed channel depth.
	FeedEventBuffer = 16
)
