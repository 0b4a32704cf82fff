package audioio

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
)

// ToneSpec describes a synthetic guitar-like test note.
type ToneSpec struct {
	Frequency float64
	Amplitude float64
	Duration  float64 // seconds of sounding note
	Decay     float64 // amplitude time constant in seconds, 0 for a held tone
	Harmonics int     // partials above the fundamental, each at 1/k²
	Noise     float64 // pick noise level during the first 10 ms
	Tail      float64 // seconds of silence after the note
}

// Pluck returns a decaying harmonic tone with a short noise burst at the
// onset, followed by silence.
func Pluck(sampleRate int, tone ToneSpec) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0: %d", sampleRate)
	}
	if tone.Frequency <= 0 || tone.Duration <= 0 {
		return nil, fmt.Errorf("tone needs positive frequency and duration: %+v", tone)
	}
	n := int(tone.Duration * float64(sampleRate))
	tail := int(math.Max(0, tone.Tail) * float64(sampleRate))
	gen := signal.NewGenerator(core.WithSampleRate(float64(sampleRate)))

	out := make([]float64, n+tail)
	nyq := float64(sampleRate) / 2
	for k := 1; k <= tone.Harmonics+1; k++ {
		f := tone.Frequency * float64(k)
		if f >= nyq {
			break
		}
		partial, err := gen.Sine(f, tone.Amplitude/float64(k*k), n)
		if err != nil {
			return nil, err
		}
		for i, v := range partial {
			out[i] += v
		}
	}

	if tone.Noise > 0 {
		pickLen := min(n, sampleRate/100)
		noise, err := signal.NewGeneratorWithOptions(
			[]core.ProcessorOption{core.WithSampleRate(float64(sampleRate))},
			signal.WithSeed(int64(tone.Frequency*1000)),
		).WhiteNoise(tone.Noise, pickLen)
		if err != nil {
			return nil, err
		}
		for i, v := range noise {
			fade := 1 - float64(i)/float64(pickLen)
			out[i] += v * fade
		}
	}

	// Short fades keep the edges click-free.
	fadeLen := min(n/2, sampleRate/500)
	for i := 0; i < n; i++ {
		g := 1.0
		if tone.Decay > 0 {
			g = math.Exp(-float64(i) / float64(sampleRate) / tone.Decay)
		}
		if i < fadeLen {
			g *= float64(i) / float64(fadeLen)
		}
		if r := n - 1 - i; r < fadeLen {
			g *= float64(r) / float64(fadeLen)
		}
		out[i] *= g
	}
	return out, nil
}

// Sine returns a plain held tone with silence after it.
func Sine(sampleRate int, freq, amp, duration, tail float64) ([]float64, error) {
	return Pluck(sampleRate, ToneSpec{
		Frequency: freq,
		Amplitude: amp,
		Duration:  duration,
		Tail:      tail,
	})
}
