package harmonizer

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// mtof converts a fractional MIDI note to Hz.
func mtof(note float32) float32 {
	const a4Freq = 440.0
	const a4Note = 69
	return a4Freq * pow2Approx((note-a4Note)/12.0)
}

func pow2Approx(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

// ftom converts Hz to a fractional MIDI note. It runs only on locked samples
// and feeds the quantizer, so it stays exact.
func ftom(hz float32) float32 {
	return 69 + 12*float32(math.Log2(float64(hz)/440.0))
}

func isFinite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}

// clamp01 limits x to [0,1]. NaN maps to 0.
func clamp01(x float32) float32 {
	if !(x > 0) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
