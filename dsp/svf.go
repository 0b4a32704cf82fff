package dsp

import "math"

// SVF is a zero-delay-feedback state-variable filter with simultaneous
// lowpass, bandpass and highpass outputs.
type SVF struct {
	sampleRate float32
	cutoff     float32
	resonance  float32

	g, k       float32
	a1, a2, a3 float32

	ic1eq, ic2eq float32

	low, band, high float32
}

// NewSVF creates a filter at 1 kHz with zero resonance.
func NewSVF(sampleRate float64) *SVF {
	s := &SVF{sampleRate: float32(sampleRate), cutoff: 1000}
	s.update()
	return s
}

// SetCutoff sets the cutoff in Hz, limited to [10 Hz, 0.49*fs].
func (s *SVF) SetCutoff(hz float32) {
	if hz < 10 {
		hz = 10
	}
	if max := 0.49 * s.sampleRate; hz > max {
		hz = max
	}
	if hz == s.cutoff {
		return
	}
	s.cutoff = hz
	s.update()
}

// SetResonance sets resonance in [0,1]. Zero is critically damped (Q = 0.5).
func (s *SVF) SetResonance(r float32) {
	if r < 0 {
		r = 0
	}
	if r > 1 {
		r = 1
	}
	s.resonance = r
	s.update()
}

// Cutoff returns the current cutoff in Hz.
func (s *SVF) Cutoff() float32 { return s.cutoff }

func (s *SVF) update() {
	s.g = float32(math.Tan(math.Pi * float64(s.cutoff) / float64(s.sampleRate)))
	s.k = 2 - 1.96*s.resonance
	s.a1 = 1 / (1 + s.g*(s.g+s.k))
	s.a2 = s.g * s.a1
	s.a3 = s.g * s.a2
}

// Process filters one sample. Read the result through the output getters.
func (s *SVF) Process(x float32) {
	v3 := x - s.ic2eq
	v1 := s.a1*s.ic1eq + s.a2*v3
	v2 := s.ic2eq + s.a2*s.ic1eq + s.a3*v3

	s.ic1eq = FlushDenormals(2*v1 - s.ic1eq)
	s.ic2eq = FlushDenormals(2*v2 - s.ic2eq)

	s.low = v2
	s.band = v1
	s.high = x - s.k*v1 - v2
}

// ProcessLowpass filters one sample and returns the lowpass output.
func (s *SVF) ProcessLowpass(x float32) float32 {
	s.Process(x)
	return s.low
}

// LowpassOutput returns the lowpass output of the last Process call.
func (s *SVF) LowpassOutput() float32 { return s.low }

// BandpassOutput returns the bandpass output of the last Process call.
func (s *SVF) BandpassOutput() float32 { return s.band }

// HighpassOutput returns the highpass output of the last Process call.
func (s *SVF) HighpassOutput() float32 { return s.high }

// Reset clears the integrator state.
func (s *SVF) Reset() {
	s.ic1eq, s.ic2eq = 0, 0
	s.low, s.band, s.high = 0, 0, 0
}
