package harmonizer

import "testing"

func TestInterval(t *testing.T) {
	want := []float32{4, 4, 4, 7, 7, 7}
	for idx, w := range want {
		if got := Interval(idx); got != w {
			t.Fatalf("Interval(%d) = %f, want %f", idx, got, w)
		}
	}
}

func TestScaleIndex(t *testing.T) {
	tests := []struct {
		knob float32
		want int
	}{
		{0, 0},
		{0.2, 1},
		{0.5, 2},
		{0.99, 5},
		{1, 5},
		{1.5, 5},
		{-0.3, 0},
	}
	for _, tt := range tests {
		if got := ScaleIndex(tt.knob); got != tt.want {
			t.Fatalf("ScaleIndex(%f) = %d, want %d", tt.knob, got, tt.want)
		}
	}
}

func TestQuantizeNearest(t *testing.T) {
	tests := []struct {
		raw   float32
		scale int
		want  float32
	}{
		{61.4, ScaleChromatic, 61},
		{61.5, ScaleChromatic, 61}, // tie keeps the first candidate
		{49, ScaleMajor, 48},       // 110 Hz plus a third
		{54.2, ScaleMajor, 55},
		{0, ScaleBlues, 36},
		{200, ScaleMajor, 108},
		{52, ScaleMinorPentatonic, 51},
		{62.9, ScaleMajorPentatonic, 62},
	}
	for _, tt := range tests {
		if got := Quantize(tt.raw, tt.scale); got != tt.want {
			t.Fatalf("Quantize(%f, %s) = %f, want %f", tt.raw, ScaleName(tt.scale), got, tt.want)
		}
	}
}

func TestQuantizeIdempotent(t *testing.T) {
	for s := 0; s < numScales; s++ {
		for raw := float32(20); raw < 120; raw += 0.13 {
			q := Quantize(raw, s)
			if again := Quantize(q, s); again != q {
				t.Fatalf("%s: Quantize(%f)=%f but Quantize(%f)=%f", ScaleName(s), raw, q, q, again)
			}
			if !InScale(q, s) {
				t.Fatalf("%s: %f is not a scale note", ScaleName(s), q)
			}
		}
	}
}

func TestHarmonizeRootLandsInKey(t *testing.T) {
	// Roots on C in every octave a guitar reaches. Minor is skipped since
	// its third is flat while the interval is a major third.
	for _, s := range []int{ScaleChromatic, ScaleMajor, ScaleMajorPentatonic, ScaleMinorPentatonic, ScaleBlues} {
		for root := float32(48); root <= 84; root += 12 {
			got := Harmonize(root, s)
			want := root + Interval(s)
			if got != want {
				t.Fatalf("%s: Harmonize(%f) = %f, want %f", ScaleName(s), root, got, want)
			}
		}
	}
	if got := Harmonize(45, ScaleMajor); got != 48 {
		t.Fatalf("Harmonize(A2, major) = %f, want 48", got)
	}
}

func TestQuantizeClampsScaleIndex(t *testing.T) {
	if Quantize(61, -4) != Quantize(61, ScaleChromatic) {
		t.Fatalf("negative scale index should act as chromatic")
	}
	if Quantize(61, 99) != Quantize(61, ScaleBlues) {
		t.Fatalf("large scale index should act as blues")
	}
}

func TestTargetPitchHysteresis(t *testing.T) {
	tp := TargetPitch{Note: 60, Hysteresis: 0.5}
	if tp.Commit(60.5) {
		t.Fatalf("a change of exactly the margin must not commit")
	}
	if tp.Commit(59.6) || tp.Note != 60 {
		t.Fatalf("small change committed: %f", tp.Note)
	}
	if !tp.Commit(62) || tp.Note != 62 {
		t.Fatalf("whole-tone change not committed: %f", tp.Note)
	}
}
