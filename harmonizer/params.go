package harmonizer

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-harmonizer/dsp"
)

// referenceRate is the audio rate the per-sample constants were tuned at. The
// defaults below are derived from those per-sample constants so that every
// sample rate sees the same time constants and cutoffs.
const (
	referenceRate      = 48000.0
	referenceBlockSize = 48
)

// DetectorConfig tunes the zero-crossing pitch detector. Times are in seconds
// and cutoffs in Hz.
type DetectorConfig struct {
	DCBlockCutoff         float64
	LowpassCutoff         float64
	Hysteresis            float32
	MinPeriod             float64
	MinFrequency          float32
	MaxFrequency          float32
	Blend                 float32 // weight of each new period measurement
	CertaintyTimeConstant float64
	InitialFrequency      float32
}

// EnvelopeConfig tunes the RMS follower and the Schmitt gate.
type EnvelopeConfig struct {
	Cutoff         float32
	Q              float32
	Offset         float32 // added to x² before filtering
	GateFloor      float32 // on-threshold at gate knob 0
	GateCurveScale float32 // on-threshold = GateFloor + knob² * GateCurveScale
	GateOffRatio   float32 // off-threshold = on-threshold * GateOffRatio
}

// QuantizerConfig tunes the scale search and target commit.
type QuantizerConfig struct {
	Hysteresis    float32 // semitones
	InitialTarget float32 // fractional MIDI
	Octaves       int
}

// VoiceConfig tunes the harmony voice.
type VoiceConfig struct {
	Waveform       dsp.Waveform
	GlideMin       float32 // half-time in seconds at glide knob 0
	GlideRange     float32 // added half-time at glide knob 1
	CutoffMin      float32
	CutoffRange    float32
	Resonance      float32
	VibratoRate    float32
	VibratoRange   float32 // semitones at vibrato knob 1
	EnvelopeGain   float32
	AttackTime     float64
	ReleaseTime    float64
	ReverbFeedback float32
	ReverbDamping  float32
}

// KnobConfig tunes block-rate control smoothing.
type KnobConfig struct {
	TimeConstant float64
}

// Params holds all preset parameters.
type Params struct {
	Detector  DetectorConfig
	Envelope  EnvelopeConfig
	Quantizer QuantizerConfig
	Voice     VoiceConfig
	Knobs     KnobConfig

	// LockCertainty is the certainty a pitch estimate must exceed before it
	// can move the harmony target or open the VCA.
	LockCertainty float32
	OutputGain    float32

	InitialKnobs Knobs
}

// NewDefaultParams creates default parameters.
func NewDefaultParams() *Params {
	return &Params{
		Detector: DetectorConfig{
			DCBlockCutoff:         cutoffForRetention(0.995),
			LowpassCutoff:         cutoffForRetention(0.9),
			Hysteresis:            0.002,
			MinPeriod:             30.0 / referenceRate,
			MinFrequency:          60,
			MaxFrequency:          1500,
			Blend:                 0.3,
			CertaintyTimeConstant: timeConstantForDecay(0.99995, 1/referenceRate),
			InitialFrequency:      440,
		},
		Envelope: EnvelopeConfig{
			Cutoff:         50,
			Q:              0.5,
			Offset:         1e-9,
			GateFloor:      1e-4,
			GateCurveScale: 0.05,
			GateOffRatio:   0.5,
		},
		Quantizer: QuantizerConfig{
			Hysteresis:    0.5,
			InitialTarget: 60,
			Octaves:       5,
		},
		Voice: VoiceConfig{
			Waveform:       dsp.WaveSquare,
			GlideMin:       0.001,
			GlideRange:     0.5,
			CutoffMin:      100,
			CutoffRange:    7000,
			Resonance:      0.3,
			VibratoRate:    6,
			VibratoRange:   1,
			EnvelopeGain:   4,
			AttackTime:     timeConstantForDecay(1-0.01, 1/referenceRate),
			ReleaseTime:    timeConstantForDecay(1-0.0001, 1/referenceRate),
			ReverbFeedback: 0.85,
			ReverbDamping:  0.5,
		},
		Knobs: KnobConfig{
			TimeConstant: timeConstantForDecay(1-0.05, referenceBlockSize/referenceRate),
		},
		LockCertainty: 0.85,
		OutputGain:    1.0,
		InitialKnobs: Knobs{
			Glide:   0.1,
			Filter:  0.5,
			Mix:     0.5,
			Gate:    0.1,
			Vibrato: 0.2,
			Reverb:  0,
			Scale:   0.2,
		},
	}
}

// Validate reports the first out-of-range field.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("nil params")
	}
	d := p.Detector
	switch {
	case !positiveFinite(d.DCBlockCutoff):
		return fmt.Errorf("detector dc block cutoff must be positive and finite: %f", d.DCBlockCutoff)
	case !positiveFinite(d.LowpassCutoff):
		return fmt.Errorf("detector lowpass cutoff must be positive and finite: %f", d.LowpassCutoff)
	case d.Hysteresis < 0:
		return fmt.Errorf("detector hysteresis must be >= 0: %f", d.Hysteresis)
	case d.MinPeriod < 0 || math.IsNaN(d.MinPeriod):
		return fmt.Errorf("detector min period must be >= 0: %f", d.MinPeriod)
	case d.MinFrequency <= 0 || d.MaxFrequency <= d.MinFrequency:
		return fmt.Errorf("detector band must satisfy 0 < min < max: [%f, %f]", d.MinFrequency, d.MaxFrequency)
	case d.Blend <= 0 || d.Blend > 1:
		return fmt.Errorf("detector blend must be in (0,1]: %f", d.Blend)
	case !positiveFinite(d.CertaintyTimeConstant):
		return fmt.Errorf("detector certainty time constant must be positive: %f", d.CertaintyTimeConstant)
	case d.InitialFrequency <= 0:
		return fmt.Errorf("detector initial frequency must be > 0: %f", d.InitialFrequency)
	}

	e := p.Envelope
	switch {
	case e.Cutoff <= 0:
		return fmt.Errorf("envelope cutoff must be > 0: %f", e.Cutoff)
	case e.Q <= 0:
		return fmt.Errorf("envelope q must be > 0: %f", e.Q)
	case e.Offset < 0:
		return fmt.Errorf("envelope offset must be >= 0: %g", e.Offset)
	case !(e.GateFloor > 0):
		return fmt.Errorf("gate floor must be > 0: %g", e.GateFloor)
	case e.GateCurveScale <= 0:
		return fmt.Errorf("gate curve scale must be > 0: %f", e.GateCurveScale)
	case e.GateOffRatio <= 0 || e.GateOffRatio >= 1:
		return fmt.Errorf("gate off ratio must be in (0,1): %f", e.GateOffRatio)
	}

	q := p.Quantizer
	if q.Hysteresis < 0 {
		return fmt.Errorf("quantizer hysteresis must be >= 0: %f", q.Hysteresis)
	}
	if q.Octaves < 1 || q.Octaves > maxOctaves {
		return fmt.Errorf("quantizer octaves must be in [1,%d]: %d", maxOctaves, q.Octaves)
	}

	v := p.Voice
	switch {
	case v.GlideMin < 0 || v.GlideRange < 0:
		return fmt.Errorf("glide times must be >= 0: min=%f range=%f", v.GlideMin, v.GlideRange)
	case v.CutoffMin <= 0 || v.CutoffRange < 0:
		return fmt.Errorf("cutoff range must satisfy min > 0, range >= 0: min=%f range=%f", v.CutoffMin, v.CutoffRange)
	case v.Resonance < 0 || v.Resonance > 1:
		return fmt.Errorf("resonance must be in [0,1]: %f", v.Resonance)
	case v.VibratoRate < 0 || v.VibratoRange < 0:
		return fmt.Errorf("vibrato rate and range must be >= 0: rate=%f range=%f", v.VibratoRate, v.VibratoRange)
	case v.EnvelopeGain <= 0:
		return fmt.Errorf("envelope gain must be > 0: %f", v.EnvelopeGain)
	case !positiveFinite(v.AttackTime) || !positiveFinite(v.ReleaseTime):
		return fmt.Errorf("vca attack and release must be positive: attack=%f release=%f", v.AttackTime, v.ReleaseTime)
	case v.AttackTime >= v.ReleaseTime:
		return fmt.Errorf("vca attack must be faster than release: attack=%f release=%f", v.AttackTime, v.ReleaseTime)
	}

	if !positiveFinite(p.Knobs.TimeConstant) {
		return fmt.Errorf("knob time constant must be positive: %f", p.Knobs.TimeConstant)
	}
	if p.LockCertainty < 0 || p.LockCertainty >= 1 {
		return fmt.Errorf("lock certainty must be in [0,1): %f", p.LockCertainty)
	}
	if p.OutputGain <= 0 {
		return fmt.Errorf("output gain must be > 0: %f", p.OutputGain)
	}
	return nil
}

// cutoffForRetention converts a one-pole feedback coefficient at the
// reference rate into its -3 dB frequency.
func cutoffForRetention(r float64) float64 {
	return -math.Log(r) * referenceRate / (2 * math.Pi)
}

// timeConstantForDecay converts a per-step retention factor into seconds.
func timeConstantForDecay(retention, step float64) float64 {
	return -step / math.Log(retention)
}

func positiveFinite(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
