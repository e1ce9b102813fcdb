// Package capture grabs frames from physical displays
package capture

import (
	"image"
	"strconv"

	"github.com/kbinani/screenshot"

	"github.com/umbradim/umbra/internal/errors"
)

// Capturer grabs frames for single monitors. Monitor ids are 1-based
// ordinals; id 0 or an id beyond the attached displays resolves to the
// first display.
type Capturer interface {
	Frame(monitorID int) (*image.RGBA, error)
	Monitors() int
	Resolve(monitorID int) int
	Close()
}

// Screen captures displays through the OS screenshot facility.
type Screen struct{}

// NewScreen creates a display capturer.
func NewScreen() *Screen { return &Screen{} }

// Monitors returns the number of attached displays.
func (s *Screen) Monitors() int { return screenshot.NumActiveDisplays() }

// Resolve returns the effective 1-based monitor id after fallback.
func (s *Screen) Resolve(monitorID int) int {
	return displayIndex(monitorID, screenshot.NumActiveDisplays()) + 1
}

// Frame captures one monitor.
func (s *Screen) Frame(monitorID int) (*image.RGBA, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, errors.New(errors.CodeCaptureFailed, "no active displays")
	}

	idx := displayIndex(monitorID, n)
	img, err := screenshot.CaptureRect(screenshot.GetDisplayBounds(idx))
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeCaptureFailed, "capture display %d", idx+1).
			WithMetadata("monitor", strconv.Itoa(monitorID))
	}
	return img, nil
}

// Close releases capture resources.
func (s *Screen) Close() {}

// displayIndex maps a 1-based monitor id onto a 0-based display index.
// Invalid ids fall back to the first display.
func displayIndex(monitorID, displays int) int {
	if monitorID < 1 || monitorID > displays {
		return 0
	}
	return monitorID - 1
}
