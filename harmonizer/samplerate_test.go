package harmonizer

import (
	"math"
	"testing"
)

var otherRates = []float64{44100, 96000}

func TestDetectorConvergesAtOtherRates(t *testing.T) {
	for _, sr := range otherRates {
		for _, freq := range []float64{82.41, 440, 1200} {
			d, err := NewPitchDetector(sr, NewDefaultParams().Detector)
			if err != nil {
				t.Fatalf("NewPitchDetector(%g): %v", sr, err)
			}
			n := int(sr)
			var sum float64
			var count int
			for i, x := range sineAt(t, sr, freq, 0.5, n) {
				d.Process(x)
				if i < n/4 {
					continue
				}
				f := float64(d.Frequency())
				if f < freq*0.75 || f > freq*1.5 {
					t.Fatalf("%g Hz rate, %.2f Hz: estimate %.2f at sample %d", sr, freq, f, i)
				}
				sum += f
				count++
			}
			if mean := sum / float64(count); math.Abs(mean-freq)/freq > 0.01 {
				t.Fatalf("%g Hz rate, %.2f Hz: mean estimate %.2f off by more than 1%%", sr, freq, mean)
			}
		}
	}
}

// The hold-off is a time, so a 2 kHz tone (period shorter than the 0.625 ms
// hold-off) skips every other edge and reads as 1 kHz at every rate.
func TestDetectorHoldOffIsATime(t *testing.T) {
	for _, sr := range []float64{44100, 48000, 96000} {
		d, err := NewPitchDetector(sr, NewDefaultParams().Detector)
		if err != nil {
			t.Fatalf("NewPitchDetector(%g): %v", sr, err)
		}
		if want := int(math.Round(0.000625 * sr)); d.holdOff != want {
			t.Fatalf("%g Hz: hold-off %d samples, want %d", sr, d.holdOff, want)
		}

		n := int(sr / 2)
		var sum float64
		var count int
		for i, x := range sineAt(t, sr, 2000, 0.5, n) {
			d.Process(x)
			if i >= n/2 {
				sum += float64(d.Frequency())
				count++
			}
		}
		if mean := sum / float64(count); math.Abs(mean-1000)/1000 > 0.02 {
			t.Fatalf("%g Hz: 2 kHz tone read as %.1f Hz, want about 1000", sr, mean)
		}
		if d.Certainty() <= 0.85 {
			t.Fatalf("%g Hz: certainty %.3f", sr, d.Certainty())
		}
	}
}

// A one-pole step reaches 90% after tau*ln(10) seconds whatever the rate.
func TestVCATimesAtOtherRates(t *testing.T) {
	cfg := NewDefaultParams().Voice
	for _, sr := range otherRates {
		v, err := NewHarmonyVoiceDriver(sr, cfg)
		if err != nil {
			t.Fatalf("NewHarmonyVoiceDriver(%g): %v", sr, err)
		}
		v.SetInitialPitch(60)

		attack := 0
		for v.Gain() < 0.9 {
			v.Tick(60, 0, true, true, 1)
			attack++
			if attack > int(sr) {
				t.Fatalf("%g Hz: VCA never opened", sr)
			}
		}
		want := cfg.AttackTime * math.Ln10 * sr
		if math.Abs(float64(attack)-want) > 2 {
			t.Fatalf("%g Hz: attack took %d samples, want %.1f", sr, attack, want)
		}

		for i := 0; i < int(sr); i++ {
			v.Tick(60, 0, true, true, 1)
		}
		release := 0
		for v.Gain() > 0.1 {
			v.Tick(60, 0, false, true, 1)
			release++
			if release > 10*int(sr) {
				t.Fatalf("%g Hz: VCA never closed", sr)
			}
		}
		want = cfg.ReleaseTime * math.Ln10 * sr
		if math.Abs(float64(release)-want) > 2 {
			t.Fatalf("%g Hz: release took %d samples, want %.1f", sr, release, want)
		}
	}
}

func TestKnobSmoothingTimeAtOtherRates(t *testing.T) {
	cfg := NewDefaultParams().Knobs
	want := cfg.TimeConstant * math.Ln10
	for _, sr := range otherRates {
		const bs = 48
		s := NewKnobSmoother(sr, bs, cfg, Knobs{})
		blocks := 0
		for s.Value().Mix < 0.9 {
			s.Update(Knobs{Mix: 1})
			blocks++
			if blocks > 10000 {
				t.Fatalf("%g Hz: mix never rose", sr)
			}
		}
		got := float64(blocks) * bs / sr
		if math.Abs(got-want) > bs/sr+1e-9 {
			t.Fatalf("%g Hz: mix reached 90%% after %.2f ms, want %.2f ms", sr, got*1000, want*1000)
		}
	}
}

func TestProcessorLocksAtOtherRates(t *testing.T) {
	for _, sr := range otherRates {
		p, err := NewProcessor(sr, 64, nil)
		if err != nil {
			t.Fatalf("NewProcessor(%g): %v", sr, err)
		}
		knobs := Knobs{Mix: 1, Gate: 0.1, Filter: 1, Scale: 0}
		p.ResetKnobs(knobs)

		in := sineAt(t, sr, 110, 0.3, int(sr/2))
		l := make([]float32, 64)
		r := make([]float32, 64)
		var st Status
		for start := 0; start+64 <= len(in); start += 64 {
			st, err = p.ProcessBlock(in[start:start+64], knobs, l, r)
			if err != nil {
				t.Fatalf("ProcessBlock: %v", err)
			}
		}
		if !st.Locked || st.Target != 49 {
			t.Fatalf("%g Hz: locked=%v target=%f, want locked on 49", sr, st.Locked, st.Target)
		}
		if st.Gain < 0.5 {
			t.Fatalf("%g Hz: gain %f after 0.5 s of note", sr, st.Gain)
		}
	}
}
