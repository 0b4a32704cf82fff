package harmonizer

// Scale indices in the order of the scale knob.
const (
	ScaleChromatic = iota
	ScaleMajor
	ScaleMinor
	ScaleMajorPentatonic
	ScaleMinorPentatonic
	ScaleBlues

	numScales = 6
)

const (
	scaleDegrees = 15
	maxOctaves   = 5
)

var scaleNames = [numScales]string{
	"chromatic",
	"major",
	"minor",
	"major pentatonic",
	"minor pentatonic",
	"blues",
}

// Degrees are rooted at C2 and span a little over two octaves so that the
// octave search below covers the whole guitar range plus an interval.
var scaleTable = [numScales][scaleDegrees]float32{
	{36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50},
	{36, 38, 40, 41, 43, 45, 47, 48, 50, 52, 53, 55, 57, 59, 60},
	{36, 38, 39, 41, 43, 44, 46, 48, 50, 51, 53, 55, 56, 58, 60},
	{36, 38, 40, 43, 45, 48, 50, 52, 55, 57, 60, 62, 64, 67, 69},
	{36, 39, 41, 43, 46, 48, 51, 53, 55, 58, 60, 63, 65, 67, 70},
	{36, 39, 41, 42, 43, 46, 48, 51, 53, 54, 55, 58, 60, 63, 65},
}

// ScaleName returns a readable name for a scale index.
func ScaleName(idx int) string {
	return scaleNames[clampScale(idx)]
}

// ScaleIndex maps the scale knob onto one of the six scales.
func ScaleIndex(knob float32) int {
	return clampScale(int(clamp01(knob) * 5.99))
}

func clampScale(idx int) int {
	if idx < 0 {
		return 0
	}
	if idx >= numScales {
		return numScales - 1
	}
	return idx
}

// Interval returns the harmony interval in semitones for a scale: a fifth
// for the pentatonic and blues scales, a third otherwise.
func Interval(scaleIndex int) float32 {
	if clampScale(scaleIndex) >= ScaleMajorPentatonic {
		return 7
	}
	return 4
}

// Quantize returns the scale note nearest to rawMidi. Ties resolve to the
// first candidate found, searching octaves and degrees in ascending order.
func Quantize(rawMidi float32, scaleIndex int) float32 {
	return quantize(rawMidi, scaleIndex, maxOctaves)
}

func quantize(rawMidi float32, scaleIndex, octaves int) float32 {
	row := &scaleTable[clampScale(scaleIndex)]
	closest := row[0]
	minDiff := float32(1000)
	for oct := 0; oct < octaves; oct++ {
		shift := float32(oct * 12)
		for _, deg := range row {
			candidate := deg + shift
			if diff := absf(rawMidi - candidate); diff < minDiff {
				minDiff = diff
				closest = candidate
			}
		}
	}
	return closest
}

// Harmonize adds the scale's interval to a fundamental and quantizes the
// result.
func Harmonize(fundamentalMidi float32, scaleIndex int) float32 {
	return Quantize(fundamentalMidi+Interval(scaleIndex), scaleIndex)
}

// InScale reports whether note is exactly one of the scale's notes in the
// searched range.
func InScale(note float32, scaleIndex int) bool {
	return Quantize(note, scaleIndex) == note
}

// TargetPitch is the last committed harmony note. It only moves when a new
// candidate differs by more than the hysteresis margin.
type TargetPitch struct {
	Note       float32
	Hysteresis float32
}

// Commit replaces the target with candidate when it is far enough away and
// reports whether it did.
func (t *TargetPitch) Commit(candidate float32) bool {
	if absf(candidate-t.Note) > t.Hysteresis {
		t.Note = candidate
		return true
	}
	return false
}
