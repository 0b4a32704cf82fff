package analysis

import "math"

// TrackStats summarizes how well a pitch track follows a known reference.
type TrackStats struct {
	Frames       int `json:"frames"`
	LockedFrames int `json:"locked_frames"`

	LockRatio       float64 `json:"lock_ratio"`
	MeanAbsCents    float64 `json:"mean_abs_cents"`
	MaxAbsCents     float64 `json:"max_abs_cents"`
	OctaveErrorRate float64 `json:"octave_error_rate"`
}

// Track compares per-frame frequency estimates against reference Hz. Only
// locked frames count toward the error figures. An estimate within 100
// cents of half or double the reference is an octave error and is kept out
// of the cents statistics.
func Track(estimates []float64, locked []bool, reference float64) TrackStats {
	n := len(estimates)
	if len(locked) < n {
		n = len(locked)
	}
	st := TrackStats{Frames: n}
	if n == 0 || reference <= 0 {
		return st
	}

	var sumCents float64
	var inTune, octave int
	for i := 0; i < n; i++ {
		if !locked[i] {
			continue
		}
		st.LockedFrames++
		est := estimates[i]
		if est <= 0 || !isFinite(est) {
			continue
		}
		c := Cents(est, reference)
		if math.Abs(math.Abs(c)-1200) < 100 {
			octave++
			continue
		}
		ac := math.Abs(c)
		sumCents += ac
		if ac > st.MaxAbsCents {
			st.MaxAbsCents = ac
		}
		inTune++
	}

	st.LockRatio = float64(st.LockedFrames) / float64(n)
	if inTune > 0 {
		st.MeanAbsCents = sumCents / float64(inTune)
	}
	if st.LockedFrames > 0 {
		st.OctaveErrorRate = float64(octave) / float64(st.LockedFrames)
	}
	return st
}

// Cents returns the interval from reference to f in cents.
func Cents(f, reference float64) float64 {
	return 1200 * math.Log2(f/reference)
}
