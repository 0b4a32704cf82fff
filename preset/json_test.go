package preset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-harmonizer/dsp"
	"github.com/cwbudde/algo-harmonizer/harmonizer"
)

func writePreset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preset.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	return path
}

func TestLoadJSONAppliesSections(t *testing.T) {
	path := writePreset(t, `{
  "output_gain": 0.9,
  "lock_certainty": 0.8,
  "detector": {"min_hz": 70, "blend": 0.5},
  "envelope": {"gate_curve": 0.08},
  "quantizer": {"hysteresis": 0.25},
  "voice": {"waveform": "saw", "glide_range_ms": 250, "attack_ms": 5},
  "knobs": {"mix": 0.8, "scale": 0.9}
}`)

	p, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if p.OutputGain != 0.9 || p.LockCertainty != 0.8 {
		t.Fatalf("global fields mismatch: gain=%f lock=%f", p.OutputGain, p.LockCertainty)
	}
	if p.Detector.MinFrequency != 70 || p.Detector.Blend != 0.5 {
		t.Fatalf("detector fields mismatch: %+v", p.Detector)
	}
	if p.Envelope.GateCurveScale != 0.08 || p.Quantizer.Hysteresis != 0.25 {
		t.Fatalf("envelope/quantizer mismatch")
	}
	if p.Voice.Waveform != dsp.WaveSaw || p.Voice.GlideRange != 0.25 || math.Abs(p.Voice.AttackTime-0.005) > 1e-12 {
		t.Fatalf("voice fields mismatch: %+v", p.Voice)
	}
	if p.InitialKnobs.Mix != 0.8 || p.InitialKnobs.Scale != 0.9 {
		t.Fatalf("knobs mismatch: %+v", p.InitialKnobs)
	}

	def := harmonizer.NewDefaultParams()
	if p.Detector.MaxFrequency != def.Detector.MaxFrequency || p.Voice.CutoffMin != def.Voice.CutoffMin {
		t.Fatalf("untouched fields should keep defaults")
	}
}

func TestLoadJSONRejects(t *testing.T) {
	tests := map[string]string{
		"bad gain":      `{"output_gain": 0}`,
		"inverted band": `{"detector": {"min_hz": 1600}}`,
		"unknown knob":  `{"knobs": {"volume": 0.5}}`,
		"knob range":    `{"knobs": {"mix": 1.5}}`,
		"waveform":      `{"voice": {"waveform": "noise"}}`,
		"release":       `{"voice": {"release_ms": 1}}`,
		"syntax":        `{"output_gain": }`,
	}
	for name, content := range tests {
		if _, err := LoadJSON(writePreset(t, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSaveJSONRoundTrip(t *testing.T) {
	p := harmonizer.NewDefaultParams()
	p.Voice.Waveform = dsp.WaveTriangle
	p.Detector.Blend = 0.4
	p.InitialKnobs.Reverb = 0.3

	path := filepath.Join(t.TempDir(), "out.json")
	if err := SaveJSON(path, p); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	got, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if got.Voice.Waveform != dsp.WaveTriangle || got.Detector.Blend != 0.4 || got.InitialKnobs != p.InitialKnobs {
		t.Fatalf("round trip lost fields")
	}
	if math.Abs(got.Detector.MinPeriod-p.Detector.MinPeriod) > 1e-12 ||
		math.Abs(got.Voice.ReleaseTime-p.Voice.ReleaseTime) > 1e-12 ||
		math.Abs(got.Knobs.TimeConstant-p.Knobs.TimeConstant) > 1e-12 {
		t.Fatalf("time constants drifted in round trip")
	}
}

func TestSetKnob(t *testing.T) {
	var k harmonizer.Knobs
	if err := SetKnob(&k, " Vib ", 0.4); err != nil || k.Vibrato != 0.4 {
		t.Fatalf("SetKnob vib: err=%v k=%+v", err, k)
	}
	if err := SetKnob(&k, "tone", 0.4); err == nil {
		t.Fatalf("expected error for unknown knob")
	}
}
