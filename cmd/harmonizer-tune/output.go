package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-harmonizer/harmonizer"
	"github.com/cwbudde/algo-harmonizer/preset"
)

type runReport struct {
	PresetPath      string             `json:"preset_path,omitempty"`
	OutputPreset    string             `json:"output_preset"`
	SampleRate      int                `json:"sample_rate"`
	BlockSize       int                `json:"block_size"`
	TonesHz         []float64          `json:"tones_hz"`
	SettleSec       float64            `json:"settle_seconds"`
	DurationSec     float64            `json:"elapsed_seconds"`
	Evaluations     int                `json:"evaluations"`
	MayflyVariant   string             `json:"mayfly_variant"`
	BestScore       float64            `json:"best_score"`
	BestMetrics     Metrics            `json:"best_metrics"`
	BestKnobs       map[string]float64 `json:"best_knobs"`
	CheckpointCount int                `json:"checkpoint_count"`
}

func writeOutputs(outputPreset, reportPath string, base *harmonizer.Params, defs []knobDef, best candidate, rep runReport) error {
	p := applyCandidate(base, defs, best)
	if err := os.MkdirAll(filepath.Dir(outputPreset), 0o755); err != nil {
		return err
	}
	if err := preset.SaveJSON(outputPreset, p); err != nil {
		return err
	}

	rep.OutputPreset = outputPreset
	rep.BestKnobs = make(map[string]float64, len(defs))
	for i, d := range defs {
		rep.BestKnobs[d.Name] = best.Vals[i]
	}
	if reportPath == "" {
		reportPath = outputPreset + ".report.json"
	}
	return writeJSON(reportPath, rep)
}

// loadCandidateFromReport seeds the search from a previous report's best
// knobs. A missing report is not an error.
func loadCandidateFromReport(path string, defs []knobDef, fallback candidate) (candidate, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, false, nil
		}
		return fallback, false, err
	}
	var rep runReport
	if err := json.Unmarshal(b, &rep); err != nil {
		return fallback, false, err
	}
	if len(rep.BestKnobs) == 0 {
		return fallback, false, nil
	}

	out := cloneCandidate(fallback)
	updated := false
	for i, d := range defs {
		if v, ok := rep.BestKnobs[d.Name]; ok {
			out.Vals[i] = clamp(v, d.Min, d.Max)
			updated = true
		}
	}
	if !updated {
		return fallback, false, nil
	}
	return out, true, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}
