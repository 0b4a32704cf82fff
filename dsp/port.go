package dsp

import "math"

// Port is a one-pole portamento smoother parameterised by half-time: after
// halfTime seconds the output has covered half the distance to a held target.
type Port struct {
	sampleRate float32
	halfTime   float32
	c1, c2     float64
	y          float64
}

// NewPort creates a smoother with the given half-time in seconds.
func NewPort(sampleRate float64, halfTime float32) *Port {
	p := &Port{sampleRate: float32(sampleRate)}
	p.halfTime = -1
	p.SetTimeConstant(halfTime)
	return p
}

// SetTimeConstant sets the half-time in seconds. Non-positive values make the
// port transparent.
func (p *Port) SetTimeConstant(halfTime float32) {
	if halfTime == p.halfTime {
		return
	}
	p.halfTime = halfTime
	if halfTime <= 0 {
		p.c1, p.c2 = 1, 0
		return
	}
	p.c2 = math.Exp(-math.Ln2 / (float64(halfTime) * float64(p.sampleRate)))
	p.c1 = 1 - p.c2
}

// Process advances one sample toward target and returns the smoothed value.
func (p *Port) Process(target float32) float32 {
	p.y = Approach(p.y, float64(target), p.c1)
	return float32(p.y)
}

// Value returns the last output.
func (p *Port) Value() float32 { return float32(p.y) }

// Reset jumps the output to v.
func (p *Port) Reset(v float32) { p.y = float64(v) }
