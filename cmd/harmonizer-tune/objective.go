package main

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-harmonizer/analysis"
	"github.com/cwbudde/algo-harmonizer/harmonizer"
	"github.com/cwbudde/algo-harmonizer/internal/audioio"
)

type knobDef struct {
	Name string
	Min  float64
	Max  float64
}

type candidate struct {
	Vals []float64
}

// toneCase is one synthetic pluck the detector is scored on. Tracking is
// scored on samples [Settle, Sound); the estimate is still blending away
// from its initial value before Settle. Samples from Sound on are silent
// tail.
type toneCase struct {
	Frequency float64
	Input     []float32
	Settle    int
	Sound     int
}

// Metrics aggregates tracking quality over all tone cases. Lower Score is
// better.
type Metrics struct {
	Score           float64               `json:"score"`
	MeanAbsCents    float64               `json:"mean_abs_cents"`
	OctaveErrorRate float64               `json:"octave_error_rate"`
	LockRatio       float64               `json:"lock_ratio"`
	FalseLockRate   float64               `json:"false_lock_rate"`
	PerTone         []analysis.TrackStats `json:"per_tone"`
}

const (
	centsWeight     = 1.0 / 100
	octaveWeight    = 2.0
	lockWeight      = 1.0
	falseLockWeight = 2.0
)

func detectorDefs() []knobDef {
	return []knobDef{
		{Name: "detector.blend", Min: 0.02, Max: 0.8},
		{Name: "detector.hysteresis", Min: 0.0002, Max: 0.05},
		{Name: "detector.lowpass_hz", Min: 250, Max: 2500},
		{Name: "detector.dc_block_hz", Min: 5, Max: 120},
		{Name: "detector.min_period_ms", Min: 0.2, Max: 1.2},
		{Name: "detector.certainty_decay_s", Min: 0.05, Max: 1.5},
		{Name: "lock_certainty", Min: 0.5, Max: 0.98},
	}
}

func initCandidate(base *harmonizer.Params, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i, d := range defs {
		vals[i] = clamp(paramValue(base, d.Name), d.Min, d.Max)
	}
	return candidate{Vals: vals}
}

func paramValue(p *harmonizer.Params, name string) float64 {
	d := p.Detector
	switch name {
	case "detector.blend":
		return float64(d.Blend)
	case "detector.hysteresis":
		return float64(d.Hysteresis)
	case "detector.lowpass_hz":
		return d.LowpassCutoff
	case "detector.dc_block_hz":
		return d.DCBlockCutoff
	case "detector.min_period_ms":
		return d.MinPeriod * 1000
	case "detector.certainty_decay_s":
		return d.CertaintyTimeConstant
	case "lock_certainty":
		return float64(p.LockCertainty)
	}
	return math.NaN()
}

func applyCandidate(base *harmonizer.Params, defs []knobDef, c candidate) *harmonizer.Params {
	p := *base
	for i, def := range defs {
		v := c.Vals[i]
		switch def.Name {
		case "detector.blend":
			p.Detector.Blend = float32(v)
		case "detector.hysteresis":
			p.Detector.Hysteresis = float32(v)
		case "detector.lowpass_hz":
			p.Detector.LowpassCutoff = v
		case "detector.dc_block_hz":
			p.Detector.DCBlockCutoff = v
		case "detector.min_period_ms":
			p.Detector.MinPeriod = v / 1000
		case "detector.certainty_decay_s":
			p.Detector.CertaintyTimeConstant = v
		case "lock_certainty":
			p.LockCertainty = float32(v)
		}
	}
	return &p
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		vals[i] = defs[i].Min + x*(defs[i].Max-defs[i].Min)
	}
	return candidate{Vals: vals}
}

func cloneCandidate(c candidate) candidate {
	vals := make([]float64, len(c.Vals))
	copy(vals, c.Vals)
	return candidate{Vals: vals}
}

func buildToneCases(sampleRate int, freqs []float64, tone audioio.ToneSpec, settle float64) ([]toneCase, error) {
	if settle < 0 || settle >= tone.Duration {
		return nil, fmt.Errorf("settle time %g s must be in [0, %g)", settle, tone.Duration)
	}
	cases := make([]toneCase, 0, len(freqs))
	for _, f := range freqs {
		s := tone
		s.Frequency = f
		x, err := audioio.Pluck(sampleRate, s)
		if err != nil {
			return nil, fmt.Errorf("tone %.2f Hz: %w", f, err)
		}
		cases = append(cases, toneCase{
			Frequency: f,
			Input:     audioio.ToFloat32(x),
			Settle:    int(math.Round(settle * float64(sampleRate))),
			Sound:     int(math.Round(tone.Duration * float64(sampleRate))),
		})
	}
	return cases, nil
}

// evaluate runs every tone through a fresh processor built from p.
func evaluate(p *harmonizer.Params, sampleRate, blockSize int, knobs harmonizer.Knobs, cases []toneCase) (Metrics, error) {
	if len(cases) == 0 {
		return Metrics{}, fmt.Errorf("no tone cases")
	}
	proc, err := harmonizer.NewProcessor(float64(sampleRate), blockSize, p)
	if err != nil {
		return Metrics{}, err
	}
	outL := make([]float32, blockSize)
	outR := make([]float32, blockSize)

	var m Metrics
	for _, tc := range cases {
		proc.Reset()
		proc.ResetKnobs(knobs)

		var est []float64
		var locked []bool
		tailBlocks, tailLocked := 0, 0
		for start := 0; start < len(tc.Input); start += blockSize {
			end := min(start+blockSize, len(tc.Input))
			n := end - start
			st, err := proc.ProcessBlock(tc.Input[start:end], knobs, outL[:n], outR[:n])
			if err != nil {
				return Metrics{}, err
			}
			if end <= tc.Sound {
				if start >= tc.Settle {
					est = append(est, float64(st.Frequency))
					locked = append(locked, st.Locked)
				}
				continue
			}
			if start >= tc.Sound {
				tailBlocks++
				if st.Locked {
					tailLocked++
				}
			}
		}

		ts := analysis.Track(est, locked, tc.Frequency)
		m.PerTone = append(m.PerTone, ts)
		m.MeanAbsCents += ts.MeanAbsCents
		m.OctaveErrorRate += ts.OctaveErrorRate
		m.LockRatio += ts.LockRatio
		if tailBlocks > 0 {
			m.FalseLockRate += float64(tailLocked) / float64(tailBlocks)
		}
	}

	n := float64(len(cases))
	m.MeanAbsCents /= n
	m.OctaveErrorRate /= n
	m.LockRatio /= n
	m.FalseLockRate /= n
	m.Score = score(m)
	return m, nil
}

func score(m Metrics) float64 {
	return centsWeight*m.MeanAbsCents +
		octaveWeight*m.OctaveErrorRate +
		lockWeight*(1-m.LockRatio) +
		falseLockWeight*m.FalseLockRate
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
