// Package harmonizer implements a monophonic guitar harmonizer: a
// zero-crossing pitch tracker and RMS noise gate drive a scale-quantized
// synth voice that is mixed with the dry input on two identical outputs.
//
// A Processor is not safe for concurrent use. ProcessBlock does not allocate.
package harmonizer

import (
	"errors"
	"fmt"
)

// ErrBufferSize is returned when block buffers do not match.
var ErrBufferSize = errors.New("harmonizer: buffer size mismatch")

// Status summarizes the last processed block.
type Status struct {
	// Locked is true if any sample in the block had an open gate and a
	// confident pitch estimate.
	Locked    bool
	Frequency float32
	Certainty float32
	Level     float32
	GateOpen  bool
	Target    float32
	Gain      float32
	Scale     int
}

// Option configures a Processor.
type Option func(*processorOptions)

type processorOptions struct {
	voice []VoiceOption
}

// WithVoiceOptions forwards options to the harmony voice.
func WithVoiceOptions(opts ...VoiceOption) Option {
	return func(o *processorOptions) { o.voice = append(o.voice, opts...) }
}

// Processor owns all harmonizer state.
type Processor struct {
	sampleRate float64
	blockSize  int
	params     *Params

	detector *PitchDetector
	envelope *EnvelopeGate
	voice    *HarmonyVoiceDriver
	knobs    *KnobSmoother
	target   TargetPitch

	status Status
}

// NewProcessor creates a harmonizer. params may be nil for defaults.
func NewProcessor(sampleRate float64, blockSize int, params *Params, opts ...Option) (*Processor, error) {
	if !positiveFinite(sampleRate) {
		return nil, fmt.Errorf("harmonizer: invalid sample rate %f", sampleRate)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("harmonizer: invalid block size %d", blockSize)
	}
	if params == nil {
		params = NewDefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("harmonizer: %w", err)
	}

	var o processorOptions
	for _, opt := range opts {
		opt(&o)
	}

	det, err := NewPitchDetector(sampleRate, params.Detector)
	if err != nil {
		return nil, err
	}
	env, err := NewEnvelopeGate(sampleRate, params.Envelope)
	if err != nil {
		return nil, err
	}
	voice, err := NewHarmonyVoiceDriver(sampleRate, params.Voice, o.voice...)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		params:     params,
		detector:   det,
		envelope:   env,
		voice:      voice,
		knobs:      NewKnobSmoother(sampleRate, blockSize, params.Knobs, params.InitialKnobs),
	}
	p.Reset()
	return p, nil
}

// Reset returns every component to its initial state, including the
// smoothed knobs.
func (p *Processor) Reset() {
	p.detector.Reset()
	p.envelope.Reset()
	p.target = TargetPitch{
		Note:       p.params.Quantizer.InitialTarget,
		Hysteresis: p.params.Quantizer.Hysteresis,
	}
	p.voice.SetInitialPitch(p.target.Note)
	p.voice.Reset()
	p.ResetKnobs(p.params.InitialKnobs)
}

// ResetKnobs snaps the smoothed knobs to k without touching audio state.
func (p *Processor) ResetKnobs(k Knobs) {
	p.knobs.Reset(k)
	p.applyKnobs(p.knobs.Value())
}

func (p *Processor) applyKnobs(k Knobs) {
	p.envelope.SetThreshold(k.Gate)
	p.voice.SetGlide(k.Glide)
	p.voice.SetCutoff(k.Filter)
	p.voice.SetReverb(k.Reverb)
}

// ProcessBlock renders one block. in, outL and outR must have equal length
// no larger than the block size. raw is read once and smoothed once for the
// whole block; a short block advances the smoothing by its own length.
func (p *Processor) ProcessBlock(in []float32, raw Knobs, outL, outR []float32) (Status, error) {
	n := len(in)
	if len(outL) != n || len(outR) != n {
		return p.status, fmt.Errorf("%w: in=%d outL=%d outR=%d", ErrBufferSize, n, len(outL), len(outR))
	}
	if n > p.blockSize {
		return p.status, fmt.Errorf("%w: %d samples exceed block size %d", ErrBufferSize, n, p.blockSize)
	}

	k := p.knobs.Advance(raw, n)
	p.applyKnobs(k)
	scale := ScaleIndex(k.Scale)
	interval := Interval(scale)
	vibDepth := k.Vibrato * p.params.Voice.VibratoRange
	mix := k.Mix
	gain := p.params.OutputGain
	octaves := p.params.Quantizer.Octaves
	lock := p.params.LockCertainty

	locked := false
	for i, x := range in {
		p.detector.Process(x)
		p.envelope.Process(x)

		gateOpen := p.envelope.IsOpen()
		confident := p.detector.Certainty() > lock
		if gateOpen && confident {
			locked = true
			note := ftom(p.detector.Frequency()) + interval
			p.target.Commit(quantize(note, scale, octaves))
		}

		harm := p.voice.Tick(p.target.Note, vibDepth, gateOpen, confident, p.envelope.Level())
		if !isFinite(x) {
			x = 0
		}
		out := (x*(1-mix) + harm*mix) * gain
		outL[i] = out
		outR[i] = out
	}

	p.status = Status{
		Locked:    locked,
		Frequency: p.detector.Frequency(),
		Certainty: p.detector.Certainty(),
		Level:     p.envelope.Level(),
		GateOpen:  p.envelope.IsOpen(),
		Target:    p.target.Note,
		Gain:      p.voice.Gain(),
		Scale:     scale,
	}
	return p.status, nil
}

// ProcessInterleaved renders one block into an interleaved stereo buffer of
// length 2*len(in).
func (p *Processor) ProcessInterleaved(in []float32, raw Knobs, out []float32) (Status, error) {
	n := len(in)
	if len(out) != 2*n {
		return p.status, fmt.Errorf("%w: in=%d out=%d (want %d)", ErrBufferSize, n, len(out), 2*n)
	}
	// Render left into the first half, then spread it backwards so the
	// frames never overwrite unread samples.
	left := out[:n]
	right := out[n : 2*n]
	st, err := p.ProcessBlock(in, raw, left, right)
	if err != nil {
		return st, err
	}
	for i := n - 1; i >= 0; i-- {
		v := left[i]
		out[2*i] = v
		out[2*i+1] = v
	}
	return st, nil
}

// Detector returns the pitch detector.
func (p *Processor) Detector() *PitchDetector { return p.detector }

// Envelope returns the envelope follower and gate.
func (p *Processor) Envelope() *EnvelopeGate { return p.envelope }

// Voice returns the harmony voice.
func (p *Processor) Voice() *HarmonyVoiceDriver { return p.voice }

// Target returns the committed harmony note.
func (p *Processor) Target() float32 { return p.target.Note }

// Knobs returns the current smoothed knobs.
func (p *Processor) Knobs() Knobs { return p.knobs.Value() }

// Status returns the status of the last processed block.
func (p *Processor) Status() Status { return p.status }

// SampleRate returns the processing rate in Hz.
func (p *Processor) SampleRate() float64 { return p.sampleRate }

// BlockSize returns the maximum block length.
func (p *Processor) BlockSize() int { return p.blockSize }
