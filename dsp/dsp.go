// Package dsp holds the small per-sample building blocks the harmonizer
// drives: a biquad, a state-variable filter, a band-limited oscillator, a
// portamento smoother and a reverb adapter. Nothing here allocates in its
// Process methods.
package dsp

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// DenormalFloor is the magnitude below which recursive state is snapped to
// zero. It is far above the float32 subnormal range on purpose.
const DenormalFloor = 1e-6

// Biquad implements a second-order IIR filter (no heap allocations in Process)
type Biquad struct {
	// Coefficients
	b0, b1, b2 float32
	a1, a2     float32

	// State (previous samples)
	x1, x2 float32 // input history
	y1, y2 float32 // output history
}

// NewBiquad creates a new biquad filter with the given coefficients
func NewBiquad(b0, b1, b2, a1, a2 float32) *Biquad {
	return &Biquad{
		b0: b0,
		b1: b1,
		b2: b2,
		a1: a1,
		a2: a2,
	}
}

// Process processes one sample through the biquad filter
func (b *Biquad) Process(input float32) float32 {
	// Direct Form I implementation
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2

	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = FlushDenormals(output)

	return output
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// NewLowpass creates an RBJ lowpass biquad. q = 0.5 gives a critically
// damped response with no overshoot.
func NewLowpass(cutoff, sampleRate, q float32) *Biquad {
	c := design.Lowpass(float64(cutoff), float64(q), float64(sampleRate))
	return NewBiquad(
		float32(c.B0),
		float32(c.B1),
		float32(c.B2),
		float32(c.A1),
		float32(c.A2),
	)
}

// FlushDenormals converts denormal numbers to zero to avoid performance issues
func FlushDenormals(x float32) float32 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0.0
	}
	return x
}

// FlushBelow snaps x to zero when |x| < floor.
func FlushBelow(x, floor float32) float32 {
	if x > -floor && x < floor {
		return 0
	}
	return x
}

// OnePoleCoeff returns the per-step smoothing weight for a one-pole filter
// y += w*(x-y) with the given time constant, stepped every step seconds.
func OnePoleCoeff(timeConstant, step float64) float64 {
	if timeConstant <= 0 || step <= 0 {
		return 1
	}
	return 1 - math.Exp(-step/timeConstant)
}

// Approach moves y one step of weight w toward target and lands exactly on
// target once within DenormalFloor. y must be float64 state: in float32 the
// step rounds away before y gets within the floor.
func Approach(y, target, w float64) float64 {
	y += w * (target - y)
	if d := y - target; d > -DenormalFloor && d < DenormalFloor {
		return target
	}
	return y
}

// RetentionForCutoff returns the feedback coefficient exp(-2*pi*fc/fs) of a
// one-pole section with the given -3 dB frequency.
func RetentionForCutoff(cutoff, sampleRate float64) float32 {
	if cutoff <= 0 || sampleRate <= 0 {
		return 0
	}
	return float32(math.Exp(-2 * math.Pi * cutoff / sampleRate))
}
