// Package luminance turns captured frames into brightness figures and
// compensates for the dimming the overlay itself applies to what is captured.
package luminance

import "image"

const (
	// maxSamples bounds per-frame work; larger frames are strided.
	maxSamples = 10000

	// minAttenuation is the smallest overlay passthrough worth inverting.
	// Frames captured under a nearly opaque overlay carry no usable signal.
	minAttenuation = 1.0 / 255.0
)

// Mean returns the average RGB channel value of img on the 0-255 scale.
// Pixels are visited on a fixed stride so cost stays flat as resolution grows.
// The same frame always yields the same mean.
func Mean(img *image.RGBA) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	total := w * h
	if total == 0 {
		return 0
	}

	step := total / maxSamples
	if step < 1 {
		step = 1
	}

	var sum, n uint64
	for i := 0; i < total; i += step {
		off := (i/w)*img.Stride + (i%w)*4
		sum += uint64(img.Pix[off]) + uint64(img.Pix[off+1]) + uint64(img.Pix[off+2])
		n++
	}
	return float64(sum) / float64(3*n)
}

// Dimmed returns the brightness perceived after an overlay at the given
// opacity blends the screen toward black.
func Dimmed(brightness, opacity float64) float64 {
	if opacity < 0 {
		opacity = 0
	} else if opacity > 255 {
		opacity = 255
	}
	return brightness * (1 - opacity/255.0)
}

// Estimator recovers true screen brightness from frames captured while the
// overlay is live. Capture happens after the overlay darkens the screen, so
// the measurement must be divided back out by the overlay passthrough.
type Estimator struct {
	last float64
}

// Estimate returns the undimmed brightness of frame given the opacity
// currently applied to its monitor, in [0,255]. When the overlay is close to
// opaque the division is meaningless and the last known estimate is returned
// instead.
func (e *Estimator) Estimate(frame *image.RGBA, appliedOpacity float64) float64 {
	return e.FromMeasured(Mean(frame), appliedOpacity)
}

// FromMeasured is Estimate for an already-computed mean.
func (e *Estimator) FromMeasured(measured, appliedOpacity float64) float64 {
	attenuation := 1 - appliedOpacity/255.0
	if attenuation <= minAttenuation {
		return e.last
	}

	v := measured / attenuation
	if v > 255 {
		v = 255
	} else if v < 0 {
		v = 0
	}
	e.last = v
	return v
}

// Last returns the most recent estimate, zero before the first frame.
func (e *Estimator) Last() float64 { return e.last }
