// Package analysis measures rendered harmonizer output: pitch of the
// harmony voice, level envelopes and tracking quality of the detector.
package analysis

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
)

const (
	minFFTSize = 256
	maxFFTSize = 1 << 16
)

// DominantFrequency returns the strongest spectral peak of x in Hz. The
// analysis uses the largest power-of-two Hann frame that fits in x and
// refines the peak bin by parabolic interpolation of the log magnitude.
func DominantFrequency(x []float64, sampleRate int) (float64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate must be > 0: %d", sampleRate)
	}
	fftSize := maxFFTSize
	for fftSize > len(x) {
		fftSize >>= 1
	}
	if fftSize < minFFTSize {
		return 0, fmt.Errorf("need at least %d samples, have %d", minFFTSize, len(x))
	}

	hann, err := window.Hann(fftSize)
	if err != nil {
		return 0, err
	}
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return 0, fmt.Errorf("fft plan: %w", err)
	}

	// Centre the frame so onsets at either end carry less weight.
	start := (len(x) - fftSize) / 2
	buf := make([]float64, fftSize)
	for i := range buf {
		buf[i] = x[start+i] * hann[i]
	}
	bins := make([]complex128, fftSize/2+1)
	plan.Forward(bins, buf)

	mags := make([]float64, len(bins))
	for k, c := range bins {
		mags[k] = math.Hypot(real(c), imag(c))
	}

	best := 1
	for k := 2; k < len(mags)-1; k++ {
		if mags[k] > mags[best] {
			best = k
		}
	}
	if mags[best] <= 1e-12 {
		return 0, fmt.Errorf("no spectral peak")
	}

	a := linToDB(mags[best-1])
	b := linToDB(mags[best])
	c := linToDB(mags[best+1])
	offset := 0.0
	if den := a - 2*b + c; math.Abs(den) > 1e-12 {
		offset = 0.5 * (a - c) / den
	}
	binHz := float64(sampleRate) / float64(fftSize)
	return (float64(best) + offset) * binHz, nil
}

// RMSEnvelope returns frame RMS values with the given hop.
func RMSEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

// FadeTimes measures the 10%-90% rise time before the envelope peak and the
// time it takes to fall from 90% to 10% of the peak after the last frame
// that held 90%. Missing edges are reported as NaN.
func FadeTimes(env []float64, hopSec float64) (attack float64, release float64) {
	attack, release = math.NaN(), math.NaN()
	if len(env) == 0 || hopSec <= 0 {
		return attack, release
	}
	peak, peakIdx := 0.0, 0
	for i, v := range env {
		if v > peak {
			peak, peakIdx = v, i
		}
	}
	if peak <= 0 {
		return attack, release
	}
	lo, hi := 0.1*peak, 0.9*peak

	rise10, rise90 := -1, -1
	for i := 0; i <= peakIdx; i++ {
		if rise10 < 0 && env[i] >= lo {
			rise10 = i
		}
		if env[i] >= hi {
			rise90 = i
			break
		}
	}
	if rise10 >= 0 && rise90 >= 0 {
		attack = float64(rise90-rise10) * hopSec
	}

	last90 := -1
	for i := len(env) - 1; i >= peakIdx; i-- {
		if env[i] >= hi {
			last90 = i
			break
		}
	}
	for i := last90 + 1; i < len(env); i++ {
		if env[i] < lo {
			release = float64(i-last90) * hopSec
			break
		}
	}
	return attack, release
}

// DecaySlope fits a line to the envelope in dB from its peak down to 60 dB
// below and returns the slope in dB per second, or NaN when the tail is too
// short to fit.
func DecaySlope(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	peak := -math.MaxFloat64
	peakIdx := 0
	for i, v := range env {
		db := linToDB(v)
		if db > peak {
			peak = db
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(env)-4 {
		return math.NaN()
	}

	threshold := peak - 60.0
	end := len(env)
	for i := start; i < len(env); i++ {
		if linToDB(env[i]) < threshold {
			end = i
			break
		}
	}
	if end-start < 6 {
		return math.NaN()
	}

	var sx, sy, sxx, sxy float64
	n := float64(end - start)
	for i := start; i < end; i++ {
		x := float64(i-start) * hopSec
		y := linToDB(env[i])
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
