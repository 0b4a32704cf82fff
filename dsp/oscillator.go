package dsp

import (
	"fmt"
	"math"
	"strings"
)

// Waveform selects the oscillator shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveTriangle
	WaveSaw
	WaveSquare
)

func (w Waveform) String() string {
	switch w {
	case WaveSine:
		return "sine"
	case WaveTriangle:
		return "triangle"
	case WaveSaw:
		return "saw"
	case WaveSquare:
		return "square"
	}
	return fmt.Sprintf("Waveform(%d)", int(w))
}

// ParseWaveform maps a preset name to a Waveform.
func ParseWaveform(name string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine", "sin":
		return WaveSine, nil
	case "triangle", "tri":
		return WaveTriangle, nil
	case "saw", "sawtooth":
		return WaveSaw, nil
	case "square", "sqr":
		return WaveSquare, nil
	}
	return WaveSine, fmt.Errorf("unknown waveform %q", name)
}

// Oscillator is a phase-accumulator oscillator. Saw and square edges are
// corrected with PolyBLEP so the harmony voice stays clean up high; the
// triangle is naive since its partials already fall at 12 dB/octave.
type Oscillator struct {
	sampleRate float32
	freq       float32
	inc        float32
	phase      float32
	amp        float32
	waveform   Waveform
}

// NewOscillator creates a sine oscillator at 440 Hz with unit amplitude.
func NewOscillator(sampleRate float64) *Oscillator {
	o := &Oscillator{
		sampleRate: float32(sampleRate),
		amp:        1,
		waveform:   WaveSine,
	}
	o.SetFrequency(440)
	return o
}

// SetFrequency sets the frequency in Hz, limited to just below Nyquist.
func (o *Oscillator) SetFrequency(hz float32) {
	nyq := 0.5 * o.sampleRate
	if hz < 0 {
		hz = 0
	}
	if hz > nyq*0.999 {
		hz = nyq * 0.999
	}
	o.freq = hz
	o.inc = hz / o.sampleRate
}

// Frequency returns the current frequency in Hz.
func (o *Oscillator) Frequency() float32 { return o.freq }

// SetWaveform selects the output shape.
func (o *Oscillator) SetWaveform(w Waveform) { o.waveform = w }

// SetAmplitude sets the peak output level.
func (o *Oscillator) SetAmplitude(a float32) { o.amp = a }

// Reset restarts the phase at zero.
func (o *Oscillator) Reset() { o.phase = 0 }

// Process returns the next output sample.
func (o *Oscillator) Process() float32 {
	t := o.phase
	dt := o.inc
	var out float32

	switch o.waveform {
	case WaveTriangle:
		out = 4*absf(t-0.5) - 1
	case WaveSaw:
		out = 2*t - 1
		out -= polyBLEP(t, dt)
	case WaveSquare:
		if t < 0.5 {
			out = 1
		} else {
			out = -1
		}
		out += polyBLEP(t, dt)
		t2 := t + 0.5
		if t2 >= 1 {
			t2 -= 1
		}
		out -= polyBLEP(t2, dt)
	default:
		out = float32(math.Sin(2 * math.Pi * float64(t)))
	}

	o.phase += dt
	if o.phase >= 1 {
		o.phase -= 1
	}
	return out * o.amp
}

// polyBLEP returns the band-limited step residual for phase t with
// increment dt.
func polyBLEP(t, dt float32) float32 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
