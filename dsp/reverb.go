package dsp

import "github.com/cwbudde/algo-dsp/dsp/effects"

// Reverb adapts two algo-dsp Freeverb instances to a stereo in/stereo out
// send with feedback and damping controls. Output is fully wet.
type Reverb struct {
	left  *effects.Reverb
	right *effects.Reverb
}

// NewReverb creates a wet-only reverb with mid room size and damping.
func NewReverb() *Reverb {
	r := &Reverb{left: effects.NewReverb(), right: effects.NewReverb()}
	for _, side := range []*effects.Reverb{r.left, r.right} {
		side.SetWet(1)
		side.SetDry(0)
	}
	r.SetFeedback(0.85)
	r.SetDamping(0.5)
	return r
}

// SetFeedback sets the comb feedback (room size), limited to [0, 0.98].
func (r *Reverb) SetFeedback(v float32) {
	v = clampf(v, 0, 0.98)
	r.left.SetRoomSize(float64(v))
	r.right.SetRoomSize(float64(v))
}

// SetDamping sets high-frequency damping in [0,1].
func (r *Reverb) SetDamping(v float32) {
	v = clampf(v, 0, 1)
	r.left.SetDamp(float64(v))
	r.right.SetDamp(float64(v))
}

// Process runs one stereo frame.
func (r *Reverb) Process(inL, inR float32) (float32, float32) {
	outL := r.left.ProcessSample(float64(inL))
	outR := r.right.ProcessSample(float64(inR))
	return float32(outL), float32(outR)
}

// Reset clears the reverb tails.
func (r *Reverb) Reset() {
	r.left.Reset()
	r.right.Reset()
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
