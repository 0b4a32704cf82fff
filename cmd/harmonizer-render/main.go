package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-harmonizer/harmonizer"
	"github.com/cwbudde/algo-harmonizer/internal/audioio"
	"github.com/cwbudde/algo-harmonizer/internal/cliutil"
)

func main() {
	inputPath := flag.String("input", "", "Input WAV file (mono or stereo, downmixed). Empty renders a synthetic pluck")
	toneHz := flag.Float64("tone", 110, "Synthetic tone frequency in Hz")
	toneDuration := flag.Float64("tone-duration", 2.0, "Synthetic tone duration in seconds")
	toneDecay := flag.Float64("tone-decay", 0.8, "Synthetic tone decay time constant in seconds (0 = held)")
	toneAmp := flag.Float64("tone-amp", 0.4, "Synthetic tone peak amplitude")
	harmonics := flag.Int("harmonics", 4, "Synthetic tone partials above the fundamental")
	noise := flag.Float64("pick-noise", 0.05, "Synthetic pick noise level")
	tail := flag.Float64("tail", 1.0, "Silence appended after the input in seconds")
	sampleRate := flag.Int("sample-rate", 48000, "Render sample rate in Hz")
	blockSize := flag.Int("block", 48, "Block size in samples")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	output := flag.String("output", "harmony.wav", "Output WAV file path")
	writeInput := flag.String("write-input", "", "Also write the mono input signal to this WAV path")
	reportPath := flag.String("report", "", "Write a JSON analysis report to this path")
	debug := flag.Bool("debug", false, "Enable debug logging")
	knobFlags := cliutil.RegisterKnobFlags(flag.CommandLine)
	flag.Parse()

	logger := cliutil.InitLogger(*debug)

	params, err := cliutil.LoadParams(*presetPath)
	if err != nil {
		cliutil.Fatal(logger, "load preset", "path", *presetPath, "err", err)
	}
	knobs := params.InitialKnobs
	if err := knobFlags.Apply(&knobs); err != nil {
		cliutil.Fatal(logger, "knob flags", "err", err)
	}

	var in []float64
	reference := 0.0
	if *inputPath != "" {
		mono, sr, err := audioio.ReadWAVMono(*inputPath)
		if err != nil {
			cliutil.Fatal(logger, "read input", "path", *inputPath, "err", err)
		}
		in, err = audioio.ResampleIfNeeded(mono, sr, *sampleRate)
		if err != nil {
			cliutil.Fatal(logger, "resample input", "from", sr, "to", *sampleRate, "err", err)
		}
		if *tail > 0 {
			in = append(in, make([]float64, int(*tail*float64(*sampleRate)))...)
		}
		logger.Info("loaded input", "path", *inputPath, "frames", len(in), "source_rate", sr)
	} else {
		in, err = audioio.Pluck(*sampleRate, audioio.ToneSpec{
			Frequency: *toneHz,
			Amplitude: *toneAmp,
			Duration:  *toneDuration,
			Decay:     *toneDecay,
			Harmonics: *harmonics,
			Noise:     *noise,
			Tail:      *tail,
		})
		if err != nil {
			cliutil.Fatal(logger, "synthesize input", "err", err)
		}
		reference = *toneHz
		logger.Info("synthesized input", "hz", *toneHz, "seconds", *toneDuration)
	}

	if *writeInput != "" {
		if err := audioio.WriteMonoWAV(*writeInput, audioio.ToFloat32(in), *sampleRate); err != nil {
			cliutil.Fatal(logger, "write input", "path", *writeInput, "err", err)
		}
	}

	proc, err := harmonizer.NewProcessor(float64(*sampleRate), *blockSize, params)
	if err != nil {
		cliutil.Fatal(logger, "create processor", "err", err)
	}
	proc.ResetKnobs(knobs)

	logger.Info("rendering",
		"frames", len(in),
		"sample_rate", *sampleRate,
		"block", *blockSize,
		"scale", harmonizer.ScaleName(harmonizer.ScaleIndex(knobs.Scale)),
		"mix", knobs.Mix,
	)

	res, err := render(proc, audioio.ToFloat32(in), knobs, logger)
	if err != nil {
		cliutil.Fatal(logger, "render", "err", err)
	}

	if err := audioio.WriteStereoInterleavedWAV(*output, res.Stereo, *sampleRate); err != nil {
		cliutil.Fatal(logger, "write output", "path", *output, "err", err)
	}
	logger.Info("wrote output", "path", *output, "seconds", float64(len(res.Stereo)/2)/float64(*sampleRate))

	if *reportPath != "" {
		rep := buildReport(res, *sampleRate, *blockSize, reference)
		rep.InputPath = *inputPath
		rep.OutputPath = *output
		rep.PresetPath = *presetPath
		rep.Knobs = knobs
		if err := writeReport(*reportPath, rep); err != nil {
			cliutil.Fatal(logger, "write report", "path", *reportPath, "err", err)
		}
		logger.Info("wrote report", "path", *reportPath, "lock_ratio", rep.Tracking.LockRatio, "output_peak_hz", rep.OutputPeakHz)
	}
}

func writeReport(path string, rep report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// lockLogger reports lock transitions, the command-line stand-in for the
// status LED.
type lockLogger struct {
	logger *slog.Logger
	locked bool
}

func (l *lockLogger) update(st harmonizer.Status, frame int, sampleRate int) {
	if st.Locked == l.locked {
		return
	}
	l.locked = st.Locked
	t := float64(frame) / float64(sampleRate)
	if st.Locked {
		l.logger.Debug("lock", "t", t, "hz", st.Frequency, "target", st.Target)
	} else {
		l.logger.Debug("unlock", "t", t, "gain", st.Gain)
	}
}
