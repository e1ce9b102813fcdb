// Package capture grabs frames from physical displays
package capture

// Capture constants
const (
	// Perception-hash Hamming distance at or below which two frames
	// count as the same content
	MaxHashDistance = 5
)
