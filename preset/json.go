// Package preset reads and writes harmonizer presets as partial JSON
// overlays on the default parameters.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cwbudde/algo-harmonizer/dsp"
	"github.com/cwbudde/algo-harmonizer/harmonizer"
)

// File is the JSON schema for harmonizer presets. Every field is optional.
type File struct {
	OutputGain      *float32           `json:"output_gain,omitempty"`
	LockCertainty   *float32           `json:"lock_certainty,omitempty"`
	KnobSmoothingMs *float64           `json:"knob_smoothing_ms,omitempty"`
	Detector        *DetectorSection   `json:"detector,omitempty"`
	Envelope        *EnvelopeSection   `json:"envelope,omitempty"`
	Quantizer       *QuantizerSection  `json:"quantizer,omitempty"`
	Voice           *VoiceSection      `json:"voice,omitempty"`
	Knobs           map[string]float32 `json:"knobs,omitempty"`
}

// DetectorSection overrides pitch detector tuning.
type DetectorSection struct {
	DCBlockHz        *float64 `json:"dc_block_hz,omitempty"`
	LowpassHz        *float64 `json:"lowpass_hz,omitempty"`
	Hysteresis       *float32 `json:"hysteresis,omitempty"`
	MinPeriodMs      *float64 `json:"min_period_ms,omitempty"`
	MinHz            *float32 `json:"min_hz,omitempty"`
	MaxHz            *float32 `json:"max_hz,omitempty"`
	Blend            *float32 `json:"blend,omitempty"`
	CertaintyDecayMs *float64 `json:"certainty_decay_ms,omitempty"`
}

// EnvelopeSection overrides the RMS follower and gate curve.
type EnvelopeSection struct {
	CutoffHz     *float32 `json:"cutoff_hz,omitempty"`
	Q            *float32 `json:"q,omitempty"`
	GateFloor    *float32 `json:"gate_floor,omitempty"`
	GateCurve    *float32 `json:"gate_curve,omitempty"`
	GateOffRatio *float32 `json:"gate_off_ratio,omitempty"`
}

// QuantizerSection overrides the scale search.
type QuantizerSection struct {
	Hysteresis    *float32 `json:"hysteresis,omitempty"`
	InitialTarget *float32 `json:"initial_target,omitempty"`
	Octaves       *int     `json:"octaves,omitempty"`
}

// VoiceSection overrides the harmony voice.
type VoiceSection struct {
	Waveform       string   `json:"waveform,omitempty"`
	GlideMinMs     *float32 `json:"glide_min_ms,omitempty"`
	GlideRangeMs   *float32 `json:"glide_range_ms,omitempty"`
	CutoffMinHz    *float32 `json:"cutoff_min_hz,omitempty"`
	CutoffRangeHz  *float32 `json:"cutoff_range_hz,omitempty"`
	Resonance      *float32 `json:"resonance,omitempty"`
	VibratoHz      *float32 `json:"vibrato_hz,omitempty"`
	VibratoRange   *float32 `json:"vibrato_range,omitempty"`
	EnvelopeGain   *float32 `json:"envelope_gain,omitempty"`
	AttackMs       *float64 `json:"attack_ms,omitempty"`
	ReleaseMs      *float64 `json:"release_ms,omitempty"`
	ReverbFeedback *float32 `json:"reverb_feedback,omitempty"`
	ReverbDamping  *float32 `json:"reverb_damping,omitempty"`
}

// LoadJSON loads a preset JSON file and applies it on top of default params.
func LoadJSON(path string) (*harmonizer.Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	p := harmonizer.NewDefaultParams()
	if err := ApplyFile(p, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ApplyFile applies a parsed preset file onto an existing params object and
// validates the result.
func ApplyFile(dst *harmonizer.Params, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination params")
	}
	if f == nil {
		return nil
	}

	if f.OutputGain != nil {
		if *f.OutputGain <= 0 {
			return fmt.Errorf("output_gain must be > 0")
		}
		dst.OutputGain = *f.OutputGain
	}
	if f.LockCertainty != nil {
		dst.LockCertainty = *f.LockCertainty
	}
	if f.KnobSmoothingMs != nil {
		dst.Knobs.TimeConstant = *f.KnobSmoothingMs / 1000
	}

	if d := f.Detector; d != nil {
		setF64(&dst.Detector.DCBlockCutoff, d.DCBlockHz, 1)
		setF64(&dst.Detector.LowpassCutoff, d.LowpassHz, 1)
		setF32(&dst.Detector.Hysteresis, d.Hysteresis)
		setF64(&dst.Detector.MinPeriod, d.MinPeriodMs, 1e-3)
		setF32(&dst.Detector.MinFrequency, d.MinHz)
		setF32(&dst.Detector.MaxFrequency, d.MaxHz)
		setF32(&dst.Detector.Blend, d.Blend)
		setF64(&dst.Detector.CertaintyTimeConstant, d.CertaintyDecayMs, 1e-3)
	}

	if e := f.Envelope; e != nil {
		setF32(&dst.Envelope.Cutoff, e.CutoffHz)
		setF32(&dst.Envelope.Q, e.Q)
		setF32(&dst.Envelope.GateFloor, e.GateFloor)
		setF32(&dst.Envelope.GateCurveScale, e.GateCurve)
		setF32(&dst.Envelope.GateOffRatio, e.GateOffRatio)
	}

	if q := f.Quantizer; q != nil {
		setF32(&dst.Quantizer.Hysteresis, q.Hysteresis)
		setF32(&dst.Quantizer.InitialTarget, q.InitialTarget)
		if q.Octaves != nil {
			dst.Quantizer.Octaves = *q.Octaves
		}
	}

	if v := f.Voice; v != nil {
		if v.Waveform != "" {
			w, err := dsp.ParseWaveform(v.Waveform)
			if err != nil {
				return fmt.Errorf("voice.waveform: %w", err)
			}
			dst.Voice.Waveform = w
		}
		setMs32(&dst.Voice.GlideMin, v.GlideMinMs)
		setMs32(&dst.Voice.GlideRange, v.GlideRangeMs)
		setF32(&dst.Voice.CutoffMin, v.CutoffMinHz)
		setF32(&dst.Voice.CutoffRange, v.CutoffRangeHz)
		setF32(&dst.Voice.Resonance, v.Resonance)
		setF32(&dst.Voice.VibratoRate, v.VibratoHz)
		setF32(&dst.Voice.VibratoRange, v.VibratoRange)
		setF32(&dst.Voice.EnvelopeGain, v.EnvelopeGain)
		setF64(&dst.Voice.AttackTime, v.AttackMs, 1e-3)
		setF64(&dst.Voice.ReleaseTime, v.ReleaseMs, 1e-3)
		setF32(&dst.Voice.ReverbFeedback, v.ReverbFeedback)
		setF32(&dst.Voice.ReverbDamping, v.ReverbDamping)
	}

	if len(f.Knobs) > 0 {
		keys := make([]string, 0, len(f.Knobs))
		for k := range f.Knobs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			val := f.Knobs[k]
			if val < 0 || val > 1 {
				return fmt.Errorf("knobs.%s must be in [0,1]: %f", k, val)
			}
			ptr := knobField(&dst.InitialKnobs, k)
			if ptr == nil {
				return fmt.Errorf("unknown knob %q", k)
			}
			*ptr = val
		}
	}

	return dst.Validate()
}

// FromParams builds a complete preset file from params.
func FromParams(p *harmonizer.Params) *File {
	d, e, q, v := p.Detector, p.Envelope, p.Quantizer, p.Voice
	return &File{
		OutputGain:      ptr(p.OutputGain),
		LockCertainty:   ptr(p.LockCertainty),
		KnobSmoothingMs: ptr(p.Knobs.TimeConstant * 1000),
		Detector: &DetectorSection{
			DCBlockHz:        ptr(d.DCBlockCutoff),
			LowpassHz:        ptr(d.LowpassCutoff),
			Hysteresis:       ptr(d.Hysteresis),
			MinPeriodMs:      ptr(d.MinPeriod * 1000),
			MinHz:            ptr(d.MinFrequency),
			MaxHz:            ptr(d.MaxFrequency),
			Blend:            ptr(d.Blend),
			CertaintyDecayMs: ptr(d.CertaintyTimeConstant * 1000),
		},
		Envelope: &EnvelopeSection{
			CutoffHz:     ptr(e.Cutoff),
			Q:            ptr(e.Q),
			GateFloor:    ptr(e.GateFloor),
			GateCurve:    ptr(e.GateCurveScale),
			GateOffRatio: ptr(e.GateOffRatio),
		},
		Quantizer: &QuantizerSection{
			Hysteresis:    ptr(q.Hysteresis),
			InitialTarget: ptr(q.InitialTarget),
			Octaves:       ptr(q.Octaves),
		},
		Voice: &VoiceSection{
			Waveform:       v.Waveform.String(),
			GlideMinMs:     ptr(v.GlideMin * 1000),
			GlideRangeMs:   ptr(v.GlideRange * 1000),
			CutoffMinHz:    ptr(v.CutoffMin),
			CutoffRangeHz:  ptr(v.CutoffRange),
			Resonance:      ptr(v.Resonance),
			VibratoHz:      ptr(v.VibratoRate),
			VibratoRange:   ptr(v.VibratoRange),
			EnvelopeGain:   ptr(v.EnvelopeGain),
			AttackMs:       ptr(v.AttackTime * 1000),
			ReleaseMs:      ptr(v.ReleaseTime * 1000),
			ReverbFeedback: ptr(v.ReverbFeedback),
			ReverbDamping:  ptr(v.ReverbDamping),
		},
		Knobs: map[string]float32{
			"glide":   p.InitialKnobs.Glide,
			"filter":  p.InitialKnobs.Filter,
			"mix":     p.InitialKnobs.Mix,
			"gate":    p.InitialKnobs.Gate,
			"vibrato": p.InitialKnobs.Vibrato,
			"reverb":  p.InitialKnobs.Reverb,
			"scale":   p.InitialKnobs.Scale,
		},
	}
}

// SaveJSON writes a complete preset for p.
func SaveJSON(path string, p *harmonizer.Params) error {
	if p == nil {
		return fmt.Errorf("nil params")
	}
	b, err := json.MarshalIndent(FromParams(p), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func knobField(k *harmonizer.Knobs, name string) *float32 {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "glide":
		return &k.Glide
	case "filter":
		return &k.Filter
	case "mix":
		return &k.Mix
	case "gate":
		return &k.Gate
	case "vibrato", "vib":
		return &k.Vibrato
	case "reverb":
		return &k.Reverb
	case "scale":
		return &k.Scale
	}
	return nil
}

// SetKnob sets a knob by name, as used by presets and the command lines.
func SetKnob(k *harmonizer.Knobs, name string, value float32) error {
	ptr := knobField(k, name)
	if ptr == nil {
		return fmt.Errorf("unknown knob %q", name)
	}
	*ptr = value
	return nil
}

func setF32(dst *float32, v *float32) {
	if v != nil {
		*dst = *v
	}
}

func setF64(dst *float64, v *float64, scale float64) {
	if v != nil {
		*dst = *v * scale
	}
}

func setMs32(dst *float32, v *float32) {
	if v != nil {
		*dst = *v / 1000
	}
}

func ptr[T any](v T) *T { return &v }
