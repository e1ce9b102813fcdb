package capture

import (
	"image"
	"testing"
)

func TestDisplayIndex(t *testing.T) {
	tests := []struct {
		id       int
		displays int
		want     int
	}{
		{1, 2, 0},
		{2, 2, 1},
		{0, 2, 0},  // below range falls back to first
		{3, 2, 0},  // beyond range falls back to first
		{-1, 2, 0}, // negative falls back to first
		{1, 1, 0},
		{5, 1, 0},
	}

	for _, tt := range tests {
		if got := displayIndex(tt.id, tt.displays); got != tt.want {
			t.Errorf("displayIndex(%d, %d) = %d, want %d", tt.id, tt.displays, got, tt.want)
		}
	}
}

func stripeFrame(w, h int, vertical bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*img.Stride + x*4
			var v uint8
			if vertical {
				if (x/8)%2 == 0 {
					v = 255
				}
			} else {
				if (y/8)%2 == 0 {
					v = 255
				}
			}
			img.Pix[off] = v
			img.Pix[off+1] = v
			img.Pix[off+2] = v
			img.Pix[off+3] = 255
		}
	}
	return img
}

func TestDetectorFirstFrameChanged(t *testing.T) {
	d := NewDetector(MaxHashDistance)
	if !d.Changed(1, stripeFrame(64, 64, true)) {
		t.Error("first frame should count as changed")
	}
}

func TestDetectorSameFrameUnchanged(t *testing.T) {
	d := NewDetector(MaxHashDistance)
	frame := stripeFrame(64, 64, true)

	d.Changed(1, frame)
	if d.Changed(1, frame) {
		t.Error("identical frame should count as unchanged")
	}
}

func TestDetectorDifferentFrameChanged(t *testing.T) {
	d := NewDetector(MaxHashDistance)
	d.Changed(1, stripeFrame(64, 64, true))

	if !d.Changed(1, stripeFrame(64, 64, false)) {
		t.Error("different frame should count as changed")
	}
}

func TestDetectorPerMonitorState(t *testing.T) {
	d := NewDetector(MaxHashDistance)
	frame := stripeFrame(64, 64, true)

	d.Changed(1, frame)
	// Monitor 2 has no history, so the same frame is a change there.
	if !d.Changed(2, frame) {
		t.Error("unseen monitor should count as changed")
	}
}

func TestDetectorForget(t *testing.T) {
	d := NewDetector(MaxHashDistance)
	frame := stripeFrame(64, 64, true)

	d.Changed(1, frame)
	d.Forget(1)
	if !d.Changed(1, frame) {
		t.Error("frame after Forget should count as changed")
	}
}
