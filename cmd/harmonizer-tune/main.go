package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/algo-harmonizer/internal/audioio"
	"github.com/cwbudde/algo-harmonizer/internal/cliutil"
)

func main() {
	presetPath := flag.String("preset", "", "Base preset JSON path (optional)")
	outputPreset := flag.String("output-preset", "assets/presets/tuned.json", "Path to write the best preset JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	tones := flag.String("tones", "82.41,110,196,329.63,659.26", "Comma-separated test tone frequencies in Hz")
	toneDuration := flag.Float64("tone-duration", 1.0, "Sounding length of each test pluck in seconds")
	toneDecay := flag.Float64("tone-decay", 0.6, "Amplitude time constant of each pluck in seconds")
	toneTail := flag.Float64("tone-tail", 0.5, "Silence after each pluck in seconds")
	settle := flag.Float64("settle", 0.25, "Seconds after each onset left out of the tracking score")
	sampleRate := flag.Int("sample-rate", 48000, "Render sample rate")
	blockSize := flag.Int("block", 48, "Processing block size")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Duration("time-budget", 2*time.Minute, "Optimization time budget")
	maxEvals := flag.Int("max-evals", 2000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 20, "Log progress every N evaluations")
	checkpointEvery := flag.Int("checkpoint-every", 1, "Write outputs every N best-score improvements")
	workers := flag.Int("workers", 0, "Parallel Mayfly workers (0 = GOMAXPROCS)")
	resume := flag.Bool("resume", true, "Resume from a previous report's best_knobs when available")
	debug := flag.Bool("debug", false, "Enable debug logging")

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	knobFlags := cliutil.RegisterKnobFlags(flag.CommandLine)
	flag.Parse()

	logger := cliutil.InitLogger(*debug)

	if *maxEvals < 1 {
		cliutil.Fatal(logger, "max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		cliutil.Fatal(logger, "time-budget must be > 0")
	}
	if *workers < 0 {
		cliutil.Fatal(logger, "workers must be >= 0")
	}
	*reportEvery = max(*reportEvery, 1)
	*checkpointEvery = max(*checkpointEvery, 1)
	*mayflyPop = max(*mayflyPop, 2)
	*mayflyRoundEvals = max(*mayflyRoundEvals, 2**mayflyPop)

	freqs, err := parseFrequencies(*tones)
	if err != nil {
		cliutil.Fatal(logger, "parse tones", "err", err)
	}
	base, err := cliutil.LoadParams(*presetPath)
	if err != nil {
		cliutil.Fatal(logger, "load preset", "path", *presetPath, "err", err)
	}
	knobs := base.InitialKnobs
	if err := knobFlags.Apply(&knobs); err != nil {
		cliutil.Fatal(logger, "knob flags", "err", err)
	}

	cases, err := buildToneCases(*sampleRate, freqs, audioio.ToneSpec{
		Amplitude: 0.4,
		Duration:  *toneDuration,
		Decay:     *toneDecay,
		Harmonics: 4,
		Noise:     0.05,
		Tail:      *toneTail,
	}, *settle)
	if err != nil {
		cliutil.Fatal(logger, "build tones", "err", err)
	}

	defs := detectorDefs()
	initial := initCandidate(base, defs)
	if *resume {
		resumePath := *reportPath
		if resumePath == "" {
			resumePath = *outputPreset + ".report.json"
		}
		if resumed, ok, err := loadCandidateFromReport(resumePath, defs, initial); err != nil {
			logger.Warn("resume skipped", "path", resumePath, "err", err)
		} else if ok {
			initial = resumed
			logger.Info("resumed candidate", "path", resumePath)
		}
	}

	variant := strings.ToLower(*mayflyVariant)
	baseReport := runReport{
		PresetPath:    *presetPath,
		SampleRate:    *sampleRate,
		BlockSize:     *blockSize,
		TonesHz:       freqs,
		SettleSec:     *settle,
		MayflyVariant: variant,
	}
	start := time.Now()
	cfg := &optimizationConfig{
		baseParams:       base,
		knobs:            knobs,
		defs:             defs,
		initCandidate:    initial,
		cases:            cases,
		sampleRate:       *sampleRate,
		blockSize:        *blockSize,
		seed:             *seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		checkpointEvery:  *checkpointEvery,
		mayflyVariant:    variant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          *workers,
		logger:           logger,
	}
	checkpoints := 0
	cfg.checkpoint = func(best candidate, m Metrics, evals int) error {
		rep := baseReport
		rep.DurationSec = time.Since(start).Seconds()
		rep.Evaluations = evals
		rep.BestScore = m.Score
		rep.BestMetrics = m
		checkpoints++
		rep.CheckpointCount = checkpoints
		return writeOutputs(*outputPreset, *reportPath, base, defs, best, rep)
	}

	res, err := runOptimization(cfg)
	if err != nil {
		cliutil.Fatal(logger, "optimization failed", "err", err)
	}

	rep := baseReport
	rep.DurationSec = res.elapsed.Seconds()
	rep.Evaluations = res.evals
	rep.BestScore = res.bestMetrics.Score
	rep.BestMetrics = res.bestMetrics
	rep.CheckpointCount = res.checkpoints
	if err := writeOutputs(*outputPreset, *reportPath, base, defs, res.best, rep); err != nil {
		cliutil.Fatal(logger, "write outputs", "err", err)
	}

	logger.Info("done", "evals", res.evals, "elapsed", res.elapsed.Round(100*time.Millisecond),
		"score", res.bestMetrics.Score, "cents", res.bestMetrics.MeanAbsCents,
		"lock_ratio", res.bestMetrics.LockRatio, "variant", variant, "preset", *outputPreset)
}

func parseFrequencies(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("tone %q: %w", part, err)
		}
		if !(f > 0) {
			return nil, fmt.Errorf("tone %q must be > 0", part)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no tones given")
	}
	return out, nil
}
