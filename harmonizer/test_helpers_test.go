package harmonizer

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
)

const testSampleRate = 48000

func sineSamples(t testing.TB, freq, amp float64, n int) []float32 {
	t.Helper()
	return sineAt(t, testSampleRate, freq, amp, n)
}

func sineAt(t testing.TB, sampleRate, freq, amp float64, n int) []float32 {
	t.Helper()
	gen := signal.NewGenerator(core.WithSampleRate(sampleRate))
	raw, err := gen.Sine(freq, amp, n)
	if err != nil {
		t.Fatalf("sine: %v", err)
	}
	out := make([]float32, n)
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out
}

func risingCrossingFreq(samples []float32, sampleRate float32) float32 {
	first, last, count := -1, -1, 0
	for i := 1; i < len(samples); i++ {
		if samples[i-1] < 0 && samples[i] >= 0 {
			if first < 0 {
				first = i
			}
			last = i
			count++
		}
	}
	if count < 2 {
		return 0
	}
	return float32(count-1) * sampleRate / float32(last-first)
}

func windowRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func mustProcessor(t testing.TB, blockSize int) *Processor {
	t.Helper()
	p, err := NewProcessor(testSampleRate, blockSize, nil)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

// renderBlocks runs in through p block by block and returns the left
// channel and the per-block status.
func renderBlocks(t testing.TB, p *Processor, in []float32, knobs Knobs) ([]float32, []Status) {
	t.Helper()
	bs := p.BlockSize()
	out := make([]float32, len(in))
	right := make([]float32, bs)
	var statuses []Status
	for start := 0; start < len(in); start += bs {
		end := min(start+bs, len(in))
		st, err := p.ProcessBlock(in[start:end], knobs, out[start:end], right[:end-start])
		if err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}
		for i := start; i < end; i++ {
			if out[i] != right[i-start] {
				t.Fatalf("channels differ at %d: %f vs %f", i, out[i], right[i-start])
			}
		}
		statuses = append(statuses, st)
	}
	return out, statuses
}
