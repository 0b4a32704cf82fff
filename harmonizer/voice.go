package harmonizer

import (
	"fmt"

	"github.com/cwbudde/algo-harmonizer/dsp"
)

// Oscillator produces the harmony waveform.
type Oscillator interface {
	SetFrequency(hz float32)
	Process() float32
	Reset()
}

// LowpassFilter shapes the harmony tone.
type LowpassFilter interface {
	SetCutoff(hz float32)
	ProcessLowpass(x float32) float32
	Reset()
}

// Smoother glides the harmony pitch toward its target.
type Smoother interface {
	SetTimeConstant(halfTime float32)
	Process(target float32) float32
	Reset(v float32)
}

// Reverberator is a stereo send effect.
type Reverberator interface {
	Process(inL, inR float32) (float32, float32)
	Reset()
}

// VoiceOption replaces one of the voice's default collaborators.
type VoiceOption func(*HarmonyVoiceDriver)

// WithOscillator sets the harmony oscillator.
func WithOscillator(o Oscillator) VoiceOption {
	return func(v *HarmonyVoiceDriver) { v.osc = o }
}

// WithWarmthFilter sets the tone filter.
func WithWarmthFilter(f LowpassFilter) VoiceOption {
	return func(v *HarmonyVoiceDriver) { v.warmth = f }
}

// WithGlide sets the pitch smoother.
func WithGlide(s Smoother) VoiceOption {
	return func(v *HarmonyVoiceDriver) { v.glide = s }
}

// WithReverberator sets the reverb used for the send.
func WithReverberator(r Reverberator) VoiceOption {
	return func(v *HarmonyVoiceDriver) { v.reverb = r }
}

// denormalOffset keeps the warmth filter integrators away from exact zero.
const denormalOffset = 1e-9

// HarmonyVoiceDriver turns a target note into the gain-shaped harmony signal.
type HarmonyVoiceDriver struct {
	cfg VoiceConfig

	osc    Oscillator
	lfo    *dsp.Oscillator
	glide  Smoother
	warmth LowpassFilter
	reverb Reverberator

	attack, release float64

	pitch      float32
	gain       float64
	reverbSend float32
	initial    float32
}

// NewHarmonyVoiceDriver creates a voice with the dsp package defaults unless
// replaced by options.
func NewHarmonyVoiceDriver(sampleRate float64, cfg VoiceConfig, opts ...VoiceOption) (*HarmonyVoiceDriver, error) {
	if !positiveFinite(sampleRate) {
		return nil, fmt.Errorf("voice: invalid sample rate %f", sampleRate)
	}
	if !positiveFinite(cfg.AttackTime) || !positiveFinite(cfg.ReleaseTime) {
		return nil, fmt.Errorf("voice: attack and release must be positive: %f, %f", cfg.AttackTime, cfg.ReleaseTime)
	}

	v := &HarmonyVoiceDriver{
		cfg:     cfg,
		attack:  dsp.OnePoleCoeff(cfg.AttackTime, 1/sampleRate),
		release: dsp.OnePoleCoeff(cfg.ReleaseTime, 1/sampleRate),
	}

	lfo := dsp.NewOscillator(sampleRate)
	lfo.SetWaveform(dsp.WaveSine)
	lfo.SetFrequency(cfg.VibratoRate)
	v.lfo = lfo

	for _, opt := range opts {
		opt(v)
	}

	if v.osc == nil {
		osc := dsp.NewOscillator(sampleRate)
		osc.SetWaveform(cfg.Waveform)
		osc.SetAmplitude(0.5)
		v.osc = osc
	}
	if v.warmth == nil {
		svf := dsp.NewSVF(sampleRate)
		svf.SetResonance(cfg.Resonance)
		v.warmth = svf
	}
	if v.glide == nil {
		v.glide = dsp.NewPort(sampleRate, cfg.GlideMin)
	}
	if v.reverb == nil {
		rv := dsp.NewReverb()
		rv.SetFeedback(cfg.ReverbFeedback)
		rv.SetDamping(cfg.ReverbDamping)
		v.reverb = rv
	}

	v.SetGlide(0)
	v.SetCutoff(0.5)
	return v, nil
}

// SetInitialPitch sets the note the glide restarts from on Reset.
func (v *HarmonyVoiceDriver) SetInitialPitch(note float32) {
	v.initial = note
	v.pitch = note
	v.glide.Reset(note)
}

// SetGlide maps the glide knob onto the portamento half-time.
func (v *HarmonyVoiceDriver) SetGlide(knob float32) {
	v.glide.SetTimeConstant(v.cfg.GlideMin + clamp01(knob)*v.cfg.GlideRange)
}

// SetCutoff maps the filter knob onto the warmth filter cutoff.
func (v *HarmonyVoiceDriver) SetCutoff(knob float32) {
	v.warmth.SetCutoff(v.cfg.CutoffMin + clamp01(knob)*v.cfg.CutoffRange)
}

// SetReverb sets the reverb send level. Zero bypasses the reverb.
func (v *HarmonyVoiceDriver) SetReverb(knob float32) {
	v.reverbSend = clamp01(knob)
}

// Tick renders one harmony sample. vibratoDepth is in semitones.
func (v *HarmonyVoiceDriver) Tick(targetMidi, vibratoDepth float32, gateOpen, confident bool, envelopeLevel float32) float32 {
	shimmer := v.lfo.Process() * vibratoDepth
	v.pitch = v.glide.Process(targetMidi)
	v.osc.SetFrequency(mtof(v.pitch + shimmer))

	sig := v.warmth.ProcessLowpass(v.osc.Process()+denormalOffset) - denormalOffset

	target := float32(0)
	if gateOpen && confident {
		target = clamp01(envelopeLevel * v.cfg.EnvelopeGain)
	}
	rate := v.release
	if float64(target) > v.gain {
		rate = v.attack
	}
	v.gain = dsp.Approach(v.gain, float64(target), rate)

	out := sig * float32(v.gain)
	if v.reverbSend > 0 {
		l, r := v.reverb.Process(out*v.reverbSend, out*v.reverbSend)
		out += 0.5 * (l + r)
	}
	return out
}

// Gain returns the current VCA gain in [0,1].
func (v *HarmonyVoiceDriver) Gain() float32 { return float32(v.gain) }

// Pitch returns the glided note before vibrato.
func (v *HarmonyVoiceDriver) Pitch() float32 { return v.pitch }

// Reset silences the voice and returns the glide to the initial pitch.
func (v *HarmonyVoiceDriver) Reset() {
	v.osc.Reset()
	v.lfo.Reset()
	v.warmth.Reset()
	v.reverb.Reset()
	v.glide.Reset(v.initial)
	v.pitch = v.initial
	v.gain = 0
}
