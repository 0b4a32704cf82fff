package harmonizer

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-harmonizer/dsp"
)

// Knobs is one reading of the seven controls, each normalized to [0,1].
type Knobs struct {
	Glide   float32 `json:"glide"`
	Filter  float32 `json:"filter"`
	Mix     float32 `json:"mix"`
	Gate    float32 `json:"gate"`
	Vibrato float32 `json:"vibrato"`
	Reverb  float32 `json:"reverb"`
	Scale   float32 `json:"scale"`
}

// Clamped returns k with every field forced into [0,1]. NaN reads as 0.
func (k Knobs) Clamped() Knobs {
	return Knobs{
		Glide:   clampKnob(k.Glide),
		Filter:  clampKnob(k.Filter),
		Mix:     clampKnob(k.Mix),
		Gate:    clampKnob(k.Gate),
		Vibrato: clampKnob(k.Vibrato),
		Reverb:  clampKnob(k.Reverb),
		Scale:   clampKnob(k.Scale),
	}
}

func clampKnob(v float32) float32 {
	f := float64(v)
	if math.IsNaN(f) {
		return 0
	}
	return float32(core.Clamp(f, 0, 1))
}

// KnobSmoother low-passes knob readings once per block so DSP never sees a
// step in a control value. State is float64 so settled knobs land exactly on
// their targets.
type KnobSmoother struct {
	blockSize int
	coeff     float64 // weight for a full block
	state     [numKnobs]float64
}

const numKnobs = 7

// NewKnobSmoother creates a smoother stepped every blockSize samples.
func NewKnobSmoother(sampleRate float64, blockSize int, cfg KnobConfig, initial Knobs) *KnobSmoother {
	step := float64(blockSize) / sampleRate
	s := &KnobSmoother{
		blockSize: blockSize,
		coeff:     dsp.OnePoleCoeff(cfg.TimeConstant, step),
	}
	s.Reset(initial)
	return s
}

// Update advances the smoothed values one full block toward raw and returns
// them.
func (s *KnobSmoother) Update(raw Knobs) Knobs {
	return s.Advance(raw, s.blockSize)
}

// Advance is Update for a block of frames samples. A short block takes a
// proportionally shorter step, so the smoothing time does not depend on how
// the host slices its buffers.
func (s *KnobSmoother) Advance(raw Knobs, frames int) Knobs {
	if frames <= 0 {
		return s.Value()
	}
	c := s.coeff
	if frames != s.blockSize && c < 1 {
		c = 1 - math.Pow(1-c, float64(frames)/float64(s.blockSize))
	}
	r := knobArray(raw.Clamped())
	for i := range s.state {
		s.state[i] = dsp.Approach(s.state[i], r[i], c)
	}
	return s.Value()
}

// Value returns the current smoothed knobs.
func (s *KnobSmoother) Value() Knobs {
	a := &s.state
	return Knobs{
		Glide:   float32(a[0]),
		Filter:  float32(a[1]),
		Mix:     float32(a[2]),
		Gate:    float32(a[3]),
		Vibrato: float32(a[4]),
		Reverb:  float32(a[5]),
		Scale:   float32(a[6]),
	}
}

// Reset snaps the smoothed values to k.
func (s *KnobSmoother) Reset(k Knobs) { s.state = knobArray(k.Clamped()) }

func knobArray(k Knobs) [numKnobs]float64 {
	return [numKnobs]float64{
		float64(k.Glide),
		float64(k.Filter),
		float64(k.Mix),
		float64(k.Gate),
		float64(k.Vibrato),
		float64(k.Reverb),
		float64(k.Scale),
	}
}
