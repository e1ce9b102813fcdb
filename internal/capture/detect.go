// Package capture grabs frames from physical displays
package capture

import (
	"image"
	"sync"

	"github.com/corona10/goimagehash"
)

// Detector flags frames that differ perceptibly from the previous frame of
// the same monitor. Two frames count as the same content when their
// perception-hash Hamming distance is at or below the threshold.
type Detector struct {
	mu          sync.Mutex
	last        map[int]*goimagehash.ImageHash
	maxDistance int
}

// NewDetector creates a change detector with the given distance threshold.
func NewDetector(maxDistance int) *Detector {
	return &Detector{
		last:        make(map[int]*goimagehash.ImageHash),
		maxDistance: maxDistance,
	}
}

// Changed reports whether frame differs from the monitor's previous frame.
// Hash errors count as changed so a broken hash never suppresses samples.
func (d *Detector) Changed(monitorID int, frame image.Image) bool {
	hash, err := goimagehash.PerceptionHash(frame)
	if err != nil {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.last[monitorID]; ok {
		if dist, err := prev.Distance(hash); err == nil && dist <= d.maxDistance {
			return false
		}
	}
	d.last[monitorID] = hash
	return true
}

// Forget drops the stored hash for a monitor.
func (d *Detector) Forget(monitorID int) {
	d.mu.Lock()
	delete(d.last, monitorID)
	d.mu.Unlock()
}
