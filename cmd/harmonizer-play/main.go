package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cwbudde/algo-harmonizer/harmonizer"
	"github.com/cwbudde/algo-harmonizer/internal/audioio"
	"github.com/cwbudde/algo-harmonizer/internal/cliutil"
	"github.com/ebitengine/oto/v3"
)

func main() {
	inputPath := flag.String("input", "", "Input WAV file to play through the harmonizer. Empty plays a synthetic pluck")
	toneHz := flag.Float64("tone", 110, "Synthetic tone frequency in Hz")
	sampleRate := flag.Int("sample-rate", 48000, "Device sample rate in Hz")
	blockSize := flag.Int("block", 48, "Processing block size in samples")
	bufferMs := flag.Int("buffer-ms", 20, "Device buffer length in milliseconds")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	loop := flag.Bool("loop", true, "Loop the input")
	duration := flag.Duration("duration", 0, "Stop after this long (0 = until 'quit' or interrupt)")
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

	input, err := loadInput(*inputPath, *toneHz, *sampleRate)
	if err != nil {
		cliutil.Fatal(logger, "load input", "err", err)
	}

	proc, err := harmonizer.NewProcessor(float64(*sampleRate), *blockSize, params)
	if err != nil {
		cliutil.Fatal(logger, "create processor", "err", err)
	}
	proc.ResetKnobs(knobs)
	st := newStream(proc, input, knobs, *loop)

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   *sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(*bufferMs) * time.Millisecond,
	})
	if err != nil {
		cliutil.Fatal(logger, "open audio device", "err", err)
	}
	<-ready

	player := ctx.NewPlayer(st)
	defer player.Close()
	player.Play()
	logger.Info("playing", "sample_rate", *sampleRate, "block", *blockSize, "loop", *loop,
		"scale", harmonizer.ScaleName(harmonizer.ScaleIndex(knobs.Scale)))
	logger.Info("set knobs with lines like 'mix=0.7'; 'quit' stops")

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, *duration)
		defer cancel()
	}

	lines := make(chan string)
	go readLines(lines)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			logger.Info("stopping")
			return
		case ev := <-st.Events():
			logLock(logger, ev)
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if handleLine(logger, st, line) {
				return
			}
		case <-ticker.C:
			if st.Done() {
				logger.Info("input finished")
				return
			}
		}
	}
}

func loadInput(path string, toneHz float64, sampleRate int) ([]float32, error) {
	if path == "" {
		x, err := audioio.Pluck(sampleRate, audioio.ToneSpec{
			Frequency: toneHz,
			Amplitude: 0.4,
			Duration:  2,
			Decay:     0.8,
			Harmonics: 4,
			Noise:     0.05,
			Tail:      0.5,
		})
		if err != nil {
			return nil, err
		}
		return audioio.ToFloat32(x), nil
	}
	mono, sr, err := audioio.ReadWAVMono(path)
	if err != nil {
		return nil, err
	}
	mono, err = audioio.ResampleIfNeeded(mono, sr, sampleRate)
	if err != nil {
		return nil, err
	}
	return audioio.ToFloat32(mono), nil
}

func readLines(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
}

// handleLine applies one console command and reports whether to quit.
func handleLine(logger *slog.Logger, st *stream, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "q", "quit", "exit":
		return true
	}
	k := st.Knobs()
	if err := cliutil.ApplyAssignment(&k, line); err != nil {
		logger.Warn("ignored", "line", line, "err", err)
		return false
	}
	st.SetKnobs(k)
	logger.Info("knobs", "glide", k.Glide, "filter", k.Filter, "mix", k.Mix, "gate", k.Gate,
		"vibrato", k.Vibrato, "reverb", k.Reverb, "scale", harmonizer.ScaleName(harmonizer.ScaleIndex(k.Scale)))
	return false
}

func logLock(logger *slog.Logger, st harmonizer.Status) {
	if st.Locked {
		logger.Info("lock", "hz", st.Frequency, "target", st.Target, "scale", harmonizer.ScaleName(st.Scale))
		return
	}
	logger.Info("unlock", "level", st.Level, "gain", st.Gain)
}
