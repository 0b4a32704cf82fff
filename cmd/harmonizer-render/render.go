package main

import (
	"log/slog"
	"math"
	"slices"

	"github.com/cwbudde/algo-harmonizer/analysis"
	"github.com/cwbudde/algo-harmonizer/harmonizer"
	"github.com/cwbudde/algo-harmonizer/internal/audioio"
)

type renderResult struct {
	Input    []float32
	Stereo   []float32
	Statuses []harmonizer.Status
}

func render(proc *harmonizer.Processor, in []float32, knobs harmonizer.Knobs, logger *slog.Logger) (*renderResult, error) {
	bs := proc.BlockSize()
	res := &renderResult{
		Input:    in,
		Stereo:   make([]float32, 2*len(in)),
		Statuses: make([]harmonizer.Status, 0, len(in)/bs+1),
	}
	ll := &lockLogger{logger: logger}
	for start := 0; start < len(in); start += bs {
		end := min(start+bs, len(in))
		st, err := proc.ProcessInterleaved(in[start:end], knobs, res.Stereo[2*start:2*end])
		if err != nil {
			return nil, err
		}
		res.Statuses = append(res.Statuses, st)
		ll.update(st, start, int(proc.SampleRate()))
	}
	return res, nil
}

type report struct {
	InputPath  string           `json:"input_path,omitempty"`
	OutputPath string           `json:"output_path"`
	PresetPath string           `json:"preset_path,omitempty"`
	Knobs      harmonizer.Knobs `json:"knobs"`

	SampleRate  int     `json:"sample_rate"`
	Frames      int     `json:"frames"`
	ReferenceHz float64 `json:"reference_hz,omitempty"`

	Tracking      analysis.TrackStats `json:"tracking"`
	Targets       []float32           `json:"targets"`
	OutputPeakHz  float64             `json:"output_peak_hz"`
	AttackSec     *float64            `json:"attack_sec,omitempty"`
	ReleaseSec    *float64            `json:"release_sec,omitempty"`
	DecayDBPerSec *float64            `json:"decay_db_per_sec,omitempty"`
	PeakGain      float32             `json:"peak_gain"`
}

func buildReport(res *renderResult, sampleRate int, blockSize int, reference float64) report {
	rep := report{
		SampleRate:  sampleRate,
		Frames:      len(res.Input),
		ReferenceHz: reference,
	}

	est := make([]float64, len(res.Statuses))
	locked := make([]bool, len(res.Statuses))
	seen := map[float32]bool{}
	var lockedFrames []int
	for i, st := range res.Statuses {
		est[i] = float64(st.Frequency)
		locked[i] = st.Locked
		if st.Gain > rep.PeakGain {
			rep.PeakGain = st.Gain
		}
		if st.Locked {
			lockedFrames = append(lockedFrames, i)
			if !seen[st.Target] {
				seen[st.Target] = true
				rep.Targets = append(rep.Targets, st.Target)
			}
		}
	}
	ref := reference
	if ref <= 0 && len(lockedFrames) > 0 {
		// Without a known input pitch, judge the track against its own
		// median so the octave error rate still means something.
		ref = medianFrequency(est, lockedFrames)
	}
	rep.Tracking = analysis.Track(est, locked, ref)

	left := audioio.LeftChannel(res.Stereo)
	if len(lockedFrames) > 0 {
		from := lockedFrames[0] * blockSize
		to := min(len(left), (lockedFrames[len(lockedFrames)-1]+1)*blockSize)
		if f, err := analysis.DominantFrequency(left[from:to], sampleRate); err == nil {
			rep.OutputPeakHz = f
		}
	}

	const frame, hop = 480, 240
	env := analysis.RMSEnvelope(left, frame, hop)
	hopSec := float64(hop) / float64(sampleRate)
	attack, release := analysis.FadeTimes(env, hopSec)
	rep.AttackSec = finiteOrNil(attack)
	rep.ReleaseSec = finiteOrNil(release)
	rep.DecayDBPerSec = finiteOrNil(analysis.DecaySlope(env, hopSec))
	return rep
}

func medianFrequency(est []float64, idx []int) float64 {
	vals := make([]float64, len(idx))
	for i, j := range idx {
		vals[i] = est[j]
	}
	slices.Sort(vals)
	return vals[len(vals)/2]
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
