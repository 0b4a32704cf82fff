package harmonizer

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-harmonizer/dsp"
)

// EnvelopeGate follows the RMS level of the input and keeps a Schmitt
// trigger gate on it.
type EnvelopeGate struct {
	cfg    EnvelopeConfig
	filter *dsp.Biquad

	level float32
	open  bool

	on, off float32
}

// NewEnvelopeGate creates an envelope follower for the given sample rate.
func NewEnvelopeGate(sampleRate float64, cfg EnvelopeConfig) (*EnvelopeGate, error) {
	if !positiveFinite(sampleRate) {
		return nil, fmt.Errorf("envelope: invalid sample rate %f", sampleRate)
	}
	if cfg.Cutoff <= 0 || float64(cfg.Cutoff) >= sampleRate/2 {
		return nil, fmt.Errorf("envelope: cutoff %f outside (0, %f)", cfg.Cutoff, sampleRate/2)
	}
	if cfg.Q <= 0 {
		return nil, fmt.Errorf("envelope: q must be > 0: %f", cfg.Q)
	}
	if !(cfg.GateFloor > 0) {
		return nil, fmt.Errorf("envelope: gate floor must be > 0: %g", cfg.GateFloor)
	}
	if cfg.GateOffRatio <= 0 || cfg.GateOffRatio >= 1 {
		return nil, fmt.Errorf("envelope: gate off ratio must be in (0,1): %f", cfg.GateOffRatio)
	}
	return &EnvelopeGate{
		cfg:    cfg,
		filter: dsp.NewLowpass(cfg.Cutoff, float32(sampleRate), cfg.Q),
	}, nil
}

// SetThreshold maps the gate knob onto the on and off thresholds. The floor
// keeps on above off at every knob position, zero included.
func (e *EnvelopeGate) SetThreshold(knob float32) {
	knob = clamp01(knob)
	e.on = e.cfg.GateFloor + knob*knob*e.cfg.GateCurveScale
	e.off = e.on * e.cfg.GateOffRatio
}

// Thresholds returns the current on and off thresholds.
func (e *EnvelopeGate) Thresholds() (on, off float32) { return e.on, e.off }

// Process consumes one input sample and updates level and gate.
func (e *EnvelopeGate) Process(x float32) {
	if !isFinite(x) {
		x = 0
	}
	ms := e.filter.Process(x*x+e.cfg.Offset) - e.cfg.Offset
	if ms < 0 {
		ms = 0
	}
	e.level = float32(math.Sqrt(float64(ms)))

	if !e.open && e.level > e.on {
		e.open = true
	} else if e.open && e.level < e.off {
		e.open = false
	}
}

// Level returns the current RMS level. It is never negative.
func (e *EnvelopeGate) Level() float32 { return e.level }

// IsOpen reports whether the gate is open.
func (e *EnvelopeGate) IsOpen() bool { return e.open }

// Reset clears the filter and closes the gate. Thresholds are kept.
func (e *EnvelopeGate) Reset() {
	e.filter.Reset()
	e.level = 0
	e.open = false
}
