package harmonizer

import (
	"errors"
	"math"
	"testing"
)

// A 110 Hz burst with the chromatic scale targets MIDI 49 (C#3), a major
// third above A2.
func TestProcessorBurstEndToEnd(t *testing.T) {
	p := mustProcessor(t, 48)
	knobs := Knobs{Mix: 1, Gate: 0.1, Glide: 0, Filter: 1, Vibrato: 0, Scale: 0}
	p.ResetKnobs(knobs)

	half := testSampleRate / 2
	in := make([]float32, 2*half)
	copy(in, sineSamples(t, 110, 0.3, half))

	out, statuses := renderBlocks(t, p, in, knobs)
	blockMs := func(ms int) Status { return statuses[ms*testSampleRate/1000/48] }

	firstLock := -1
	for i, st := range statuses {
		if st.Locked {
			firstLock = i
			break
		}
	}
	if firstLock < 0 || firstLock >= 25 {
		t.Fatalf("first locked block = %d, want within 25 ms", firstLock)
	}

	for ms := 200; ms < 500; ms++ {
		st := blockMs(ms)
		if !st.Locked || st.Target != 49 {
			t.Fatalf("at %d ms: locked=%v target=%f, want locked on 49", ms, st.Locked, st.Target)
		}
		if math.Abs(float64(st.Frequency)-110) > 1.5 {
			t.Fatalf("at %d ms: frequency %f", ms, st.Frequency)
		}
	}

	harmony := out[testSampleRate/4 : half]
	want := 440 * math.Pow(2, (49.0-69)/12)
	if got := float64(risingCrossingFreq(harmony, testSampleRate)); math.Abs(got-want)/want > 0.02 {
		t.Fatalf("harmony at %f Hz, want %f", got, want)
	}

	if g := blockMs(100).Gain; g < 0.5 {
		t.Fatalf("gain during note = %f", g)
	}

	// The harmony fades after the note ends instead of cutting off.
	if g := blockMs(510).Gain; g < 0.6 {
		t.Fatalf("gain 10 ms after note = %f, want slow release", g)
	}
	g := blockMs(700).Gain
	if g < 0.15 || g > 0.6 {
		t.Fatalf("gain 200 ms after note = %f, want about 0.33", g)
	}
	tail := out[680*testSampleRate/1000 : 700*testSampleRate/1000]
	if windowRMS(tail) < 0.01 {
		t.Fatalf("harmony tail silent 200 ms after note")
	}
	if blockMs(999).Locked {
		t.Fatalf("still locked at the end of silence")
	}
}

// 50 ms of 110 Hz followed by 200 ms of silence: the harmony comes in within
// a few milliseconds and dies away over the release instead of cutting off.
func TestProcessorShortBurstFades(t *testing.T) {
	p := mustProcessor(t, 48)
	knobs := Knobs{Mix: 1, Gate: 0.1, Filter: 1, Scale: 0}
	p.ResetKnobs(knobs)

	burst := 50 * testSampleRate / 1000
	in := make([]float32, 250*testSampleRate/1000)
	copy(in, sineSamples(t, 110, 0.3, burst))

	out, statuses := renderBlocks(t, p, in, knobs)
	blockMs := func(ms int) Status { return statuses[ms*testSampleRate/1000/48] }

	fadeIn := -1
	for i, st := range statuses {
		if st.Gain > 0.1 {
			fadeIn = i
			break
		}
	}
	if fadeIn < 0 || fadeIn >= 25 {
		t.Fatalf("harmony gain passed 0.1 at block %d, want within 25 ms", fadeIn)
	}

	end := blockMs(49).Gain
	if end < 0.5 {
		t.Fatalf("gain at end of burst = %f", end)
	}
	if g := blockMs(59).Gain; g < 0.5*end {
		t.Fatalf("gain 10 ms after burst = %f, fell too fast from %f", g, end)
	}
	if g := blockMs(249).Gain; g < 0.1 || g > 0.6 {
		t.Fatalf("gain 200 ms after burst = %f, want a partial release", g)
	}
	for i, v := range out {
		if !isFinite(v) {
			t.Fatalf("sample %d not finite: %f", i, v)
		}
	}
	if windowRMS(out[burst+10*testSampleRate/1000:]) == 0 {
		t.Fatalf("harmony silent right after the burst")
	}
}

func TestProcessorDryOnlyAtZeroMix(t *testing.T) {
	p := mustProcessor(t, 64)
	knobs := Knobs{Mix: 0, Gate: 0.1, Scale: 0.2}
	p.ResetKnobs(knobs)
	in := sineSamples(t, 196, 0.3, testSampleRate/4)
	out, _ := renderBlocks(t, p, in, knobs)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: %f, want dry %f", i, out[i], in[i])
		}
	}
}

func TestProcessorSilenceStaysFinite(t *testing.T) {
	p := mustProcessor(t, 48)
	in := make([]float32, 48)
	outL := make([]float32, 48)
	outR := make([]float32, 48)
	knobs := Knobs{Mix: 1, Reverb: 0.5, Filter: 1, Vibrato: 1}
	for b := 0; b < 10*testSampleRate/48; b++ {
		st, err := p.ProcessBlock(in, knobs, outL, outR)
		if err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}
		if st.Locked {
			t.Fatalf("locked on silence at block %d", b)
		}
		for i, v := range outL {
			if !isFinite(v) || v != 0 {
				t.Fatalf("block %d sample %d = %f on silence", b, i, v)
			}
		}
	}
}

func TestProcessorExtremeInputStaysFinite(t *testing.T) {
	p := mustProcessor(t, 48)
	in := make([]float32, 48)
	pattern := []float32{1e3, -1e3, float32(math.NaN()), float32(math.Inf(-1)), 1e-38, 0, 1, -1}
	for i := range in {
		in[i] = pattern[i%len(pattern)]
	}
	outL := make([]float32, 48)
	outR := make([]float32, 48)
	raw := Knobs{Mix: float32(math.NaN()), Gate: 5, Reverb: 1, Vibrato: -3, Scale: 2}
	for b := 0; b < 2000; b++ {
		if _, err := p.ProcessBlock(in, raw, outL, outR); err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}
		for i := range outL {
			if !isFinite(outL[i]) || !isFinite(outR[i]) {
				t.Fatalf("block %d sample %d not finite: %f", b, i, outL[i])
			}
		}
	}
	k := p.Knobs()
	if k.Mix != 0 || k.Gate != 1 || k.Vibrato != 0 || k.Scale != 1 {
		t.Fatalf("knobs not clamped: %+v", k)
	}
}

func TestProcessorBufferErrors(t *testing.T) {
	p := mustProcessor(t, 32)
	in := make([]float32, 32)
	if _, err := p.ProcessBlock(in, Knobs{}, make([]float32, 31), make([]float32, 32)); !errors.Is(err, ErrBufferSize) {
		t.Fatalf("mismatched outL: err = %v", err)
	}
	big := make([]float32, 64)
	if _, err := p.ProcessBlock(big, Knobs{}, big, big); !errors.Is(err, ErrBufferSize) {
		t.Fatalf("oversized block: err = %v", err)
	}
	if _, err := p.ProcessInterleaved(in, Knobs{}, make([]float32, 32)); !errors.Is(err, ErrBufferSize) {
		t.Fatalf("short interleaved buffer: err = %v", err)
	}
	// Short final blocks are fine.
	if _, err := p.ProcessBlock(in[:5], Knobs{}, make([]float32, 5), make([]float32, 5)); err != nil {
		t.Fatalf("short block: %v", err)
	}
}

func TestProcessInterleavedMatchesBlock(t *testing.T) {
	a := mustProcessor(t, 48)
	b := mustProcessor(t, 48)
	knobs := Knobs{Mix: 0.6, Gate: 0.1, Scale: 0.8, Reverb: 0.3}
	in := sineSamples(t, 147, 0.3, 4800)

	left := make([]float32, 48)
	right := make([]float32, 48)
	inter := make([]float32, 96)
	for start := 0; start < len(in); start += 48 {
		blk := in[start : start+48]
		if _, err := a.ProcessBlock(blk, knobs, left, right); err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}
		if _, err := b.ProcessInterleaved(blk, knobs, inter); err != nil {
			t.Fatalf("ProcessInterleaved: %v", err)
		}
		for i := range left {
			if inter[2*i] != left[i] || inter[2*i+1] != right[i] {
				t.Fatalf("frame %d differs: (%f,%f) vs (%f,%f)", start+i, inter[2*i], inter[2*i+1], left[i], right[i])
			}
		}
	}
}

func TestProcessorResetRestoresInitialState(t *testing.T) {
	p := mustProcessor(t, 48)
	knobs := Knobs{Mix: 1, Gate: 0.1}
	renderBlocks(t, p, sineSamples(t, 220, 0.3, 9600), knobs)
	p.Reset()
	if p.Target() != 60 {
		t.Fatalf("target after Reset = %f", p.Target())
	}
	if p.Knobs() != NewDefaultParams().InitialKnobs {
		t.Fatalf("knobs after Reset = %+v", p.Knobs())
	}
	if p.Detector().Certainty() != 0 || p.Envelope().IsOpen() || p.Voice().Gain() != 0 {
		t.Fatalf("components not reset")
	}
}

func TestNewProcessorRejects(t *testing.T) {
	if _, err := NewProcessor(0, 48, nil); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
	if _, err := NewProcessor(testSampleRate, 0, nil); err == nil {
		t.Fatalf("expected error for zero block size")
	}
	bad := NewDefaultParams()
	bad.Detector.Blend = 2
	if _, err := NewProcessor(testSampleRate, 48, bad); err == nil {
		t.Fatalf("expected error for invalid params")
	}
}

func TestProcessBlockDoesNotAllocate(t *testing.T) {
	p := mustProcessor(t, 48)
	in := sineSamples(t, 220, 0.3, 48)
	outL := make([]float32, 48)
	outR := make([]float32, 48)
	knobs := Knobs{Mix: 0.5, Gate: 0.1, Reverb: 0.4, Vibrato: 0.3, Scale: 0.6}
	allocs := testing.AllocsPerRun(200, func() {
		_, _ = p.ProcessBlock(in, knobs, outL, outR)
	})
	if allocs != 0 {
		t.Fatalf("ProcessBlock allocated %.1f times per block", allocs)
	}
}

func BenchmarkProcessBlock(b *testing.B) {
	p := mustProcessor(b, 48)
	in := sineSamples(b, 220, 0.3, 48)
	outL := make([]float32, 48)
	outR := make([]float32, 48)
	knobs := Knobs{Mix: 0.5, Gate: 0.1, Reverb: 0.4, Vibrato: 0.3, Scale: 0.6}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.ProcessBlock(in, knobs, outL, outR)
	}
}
