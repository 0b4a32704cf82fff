package main

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-harmonizer/harmonizer"
	"github.com/cwbudde/mayfly"
)

type optimizationConfig struct {
	baseParams       *harmonizer.Params
	knobs            harmonizer.Knobs
	defs             []knobDef
	initCandidate    candidate
	cases            []toneCase
	sampleRate       int
	blockSize        int
	seed             int64
	timeBudget       time.Duration
	maxEvals         int
	reportEvery      int
	checkpointEvery  int
	mayflyVariant    string
	mayflyPop        int
	mayflyRoundEvals int
	workers          int
	checkpoint       func(best candidate, m Metrics, evals int) error
	logger           *slog.Logger
}

type optimizationResult struct {
	best        candidate
	bestMetrics Metrics
	evals       int
	elapsed     time.Duration
	checkpoints int
}

type optimizationState struct {
	mu          sync.Mutex
	best        candidate
	bestMetrics Metrics
	checkpoints int
}

func runOptimization(cfg *optimizationConfig) (*optimizationResult, error) {
	eval := func(c candidate) (Metrics, error) {
		p := applyCandidate(cfg.baseParams, cfg.defs, c)
		return evaluate(p, cfg.sampleRate, cfg.blockSize, cfg.knobs, cfg.cases)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	deadline := start.Add(cfg.timeBudget)
	variant := strings.ToLower(cfg.mayflyVariant)

	best := cloneCandidate(cfg.initCandidate)
	bestM, err := eval(best)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	logger.Info("start", "score", bestM.Score, "cents", bestM.MeanAbsCents, "lock_ratio", bestM.LockRatio)

	state := &optimizationState{best: best, bestMetrics: bestM}
	var evals int64 = 1
	var rounds int64
	var improves int64
	var outputMu sync.Mutex
	var latestPersisted int64

	workers := cfg.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(workers, 1)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if time.Now().After(deadline) {
					return
				}
				remaining := cfg.maxEvals - int(atomic.LoadInt64(&evals))
				if remaining <= 0 {
					return
				}
				round := int(atomic.AddInt64(&rounds, 1))
				budget := min(cfg.mayflyRoundEvals, remaining)
				iters := max(1, budget/(2*cfg.mayflyPop))

				mcfg, err := newMayflyConfig(variant, cfg.mayflyPop, len(cfg.defs), iters)
				if err != nil {
					logger.Error("mayfly setup failed", "round", round, "err", err)
					return
				}
				mcfg.Rand = rand.New(rand.NewSource(cfg.seed + int64(round)*7919))
				mcfg.ObjectiveFunc = func(pos []float64) float64 {
					if time.Now().After(deadline) {
						return currentBestScore(state) + 1.0
					}
					evalNum, ok := reserveEval(&evals, cfg.maxEvals)
					if !ok {
						return currentBestScore(state) + 1.0
					}

					cand := fromNormalized(pos, cfg.defs)
					m, err := eval(cand)
					if err != nil {
						return currentBestScore(state) + 0.8
					}

					improved := false
					checkpointDue := false
					var improveNum int64
					var snapshot candidate
					var snapshotM Metrics

					state.mu.Lock()
					if m.Score < state.bestMetrics.Score {
						state.best = cloneCandidate(cand)
						state.bestMetrics = m
						improved = true
						improveNum = atomic.AddInt64(&improves, 1)
						checkpointDue = cfg.checkpointEvery > 0 && improveNum%int64(cfg.checkpointEvery) == 0
					}
					snapshot = cloneCandidate(state.best)
					snapshotM = state.bestMetrics
					state.mu.Unlock()

					if improved {
						logger.Info("improved", "n", improveNum, "eval", evalNum, "score", snapshotM.Score,
							"cents", snapshotM.MeanAbsCents, "lock_ratio", snapshotM.LockRatio,
							"octave_errors", snapshotM.OctaveErrorRate)
						if checkpointDue && cfg.checkpoint != nil {
							outputMu.Lock()
							if improveNum > latestPersisted {
								latestPersisted = improveNum
								if err := cfg.checkpoint(snapshot, snapshotM, int(atomic.LoadInt64(&evals))); err != nil {
									logger.Warn("checkpoint write failed", "err", err)
								} else {
									state.mu.Lock()
									state.checkpoints++
									state.mu.Unlock()
								}
							}
							outputMu.Unlock()
						}
					}

					if cfg.reportEvery > 0 && evalNum%int64(cfg.reportEvery) == 0 {
						logger.Info("progress", "round", round, "eval", evalNum,
							"elapsed", time.Since(start).Round(100*time.Millisecond), "best", snapshotM.Score)
					}
					return m.Score
				}

				if _, err := runMayfly(mcfg); err != nil {
					logger.Warn("mayfly round failed", "round", round, "err", err)
				}
			}
		}()
	}
	wg.Wait()

	state.mu.Lock()
	defer state.mu.Unlock()
	return &optimizationResult{
		best:        cloneCandidate(state.best),
		bestMetrics: state.bestMetrics,
		evals:       int(atomic.LoadInt64(&evals)),
		elapsed:     time.Since(start),
		checkpoints: state.checkpoints,
	}, nil
}

func reserveEval(evals *int64, maxEvals int) (int64, bool) {
	for {
		cur := atomic.LoadInt64(evals)
		if cur >= int64(maxEvals) {
			return 0, false
		}
		if atomic.CompareAndSwapInt64(evals, cur, cur+1) {
			return cur + 1, true
		}
	}
}

func currentBestScore(state *optimizationState) float64 {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.bestMetrics.Score
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	// NC/2 parent pairs must exist in both populations.
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}
