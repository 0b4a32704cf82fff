package harmonizer

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-harmonizer/dsp"
)

// PitchEstimate is the detector's current belief about the input pitch.
type PitchEstimate struct {
	Frequency float32
	Certainty float32
}

type crossingState uint8

const (
	waitingForRise crossingState = iota
	waitingForFall
)

// PitchDetector estimates the fundamental of a monophonic signal by timing
// full periods between rising zero crossings of a conditioned copy of the
// input.
type PitchDetector struct {
	cfg DetectorConfig

	dcRetention float32
	lpRetention float32
	holdOff     int
	sampleRate  float32
	decay       float32

	// DC blocker and low-pass memory
	dcX1, dcY1 float32
	lpY1       float32

	state   crossingState
	counter int

	freq      float32
	certainty float32
}

// NewPitchDetector creates a detector for the given sample rate.
func NewPitchDetector(sampleRate float64, cfg DetectorConfig) (*PitchDetector, error) {
	if !positiveFinite(sampleRate) {
		return nil, fmt.Errorf("pitch detector: invalid sample rate %f", sampleRate)
	}
	if cfg.MinFrequency <= 0 || cfg.MaxFrequency <= cfg.MinFrequency {
		return nil, fmt.Errorf("pitch detector: invalid band [%f, %f]", cfg.MinFrequency, cfg.MaxFrequency)
	}
	if cfg.Blend <= 0 || cfg.Blend > 1 {
		return nil, fmt.Errorf("pitch detector: blend must be in (0,1]: %f", cfg.Blend)
	}
	if !positiveFinite(cfg.CertaintyTimeConstant) {
		return nil, fmt.Errorf("pitch detector: invalid certainty time constant %f", cfg.CertaintyTimeConstant)
	}

	d := &PitchDetector{
		cfg:         cfg,
		sampleRate:  float32(sampleRate),
		dcRetention: dsp.RetentionForCutoff(cfg.DCBlockCutoff, sampleRate),
		lpRetention: dsp.RetentionForCutoff(cfg.LowpassCutoff, sampleRate),
		holdOff:     int(math.Round(cfg.MinPeriod * sampleRate)),
		decay:       float32(math.Exp(-1 / (cfg.CertaintyTimeConstant * sampleRate))),
	}
	d.Reset()
	return d, nil
}

// Reset returns the detector to its initial state.
func (d *PitchDetector) Reset() {
	d.dcX1, d.dcY1, d.lpY1 = 0, 0, 0
	d.state = waitingForRise
	d.counter = 0
	d.freq = d.cfg.InitialFrequency
	d.certainty = 0
}

// Process consumes one input sample.
func (d *PitchDetector) Process(x float32) {
	if !isFinite(x) {
		x = 0
	}

	// DC blocker
	y := x - d.dcX1 + d.dcRetention*d.dcY1
	d.dcX1 = x
	d.dcY1 = dsp.FlushBelow(y, dsp.DenormalFloor)

	// One-pole low-pass to suppress harmonics that add extra crossings
	d.lpY1 = dsp.FlushBelow((1-d.lpRetention)*d.dcY1+d.lpRetention*d.lpY1, dsp.DenormalFloor)
	s := d.lpY1

	d.counter++
	d.certainty = dsp.FlushBelow(d.certainty*d.decay, dsp.DenormalFloor)

	switch d.state {
	case waitingForRise:
		if s > d.cfg.Hysteresis {
			d.state = waitingForFall
			// Edges inside the hold-off window are pick transients; the
			// period keeps counting from the last real edge.
			if d.counter > d.holdOff {
				d.accept(d.counter)
				d.counter = 0
			}
		}
	case waitingForFall:
		if s < -d.cfg.Hysteresis {
			d.state = waitingForRise
		}
	}
}

func (d *PitchDetector) accept(period int) {
	f := d.sampleRate / float32(period)
	if f <= d.cfg.MinFrequency || f >= d.cfg.MaxFrequency {
		return
	}
	d.freq = (1-d.cfg.Blend)*d.freq + d.cfg.Blend*f
	d.certainty = 1
}

// Frequency returns the smoothed frequency estimate in Hz.
func (d *PitchDetector) Frequency() float32 { return d.freq }

// Certainty returns the confidence of the estimate in [0,1].
func (d *PitchDetector) Certainty() float32 { return d.certainty }

// Estimate returns frequency and certainty together.
func (d *PitchDetector) Estimate() PitchEstimate {
	return PitchEstimate{Frequency: d.freq, Certainty: d.certainty}
}
