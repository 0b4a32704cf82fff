// Package cliutil wires logging, presets and knob flags for the commands.
package cliutil

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-harmonizer/harmonizer"
	"github.com/cwbudde/algo-harmonizer/preset"
)

// InitLogger installs a text slog handler on stderr as the default logger.
func InitLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// LoadParams returns defaults, or the preset at path when it is set.
func LoadParams(path string) (*harmonizer.Params, error) {
	if path == "" {
		return harmonizer.NewDefaultParams(), nil
	}
	return preset.LoadJSON(path)
}

var knobNames = []string{"glide", "filter", "mix", "gate", "vibrato", "reverb", "scale"}

// KnobFlags registers one float flag per knob.
type KnobFlags struct {
	fs     *flag.FlagSet
	values map[string]*float64
}

// RegisterKnobFlags adds -glide, -filter, -mix, -gate, -vibrato, -reverb and
// -scale to fs.
func RegisterKnobFlags(fs *flag.FlagSet) *KnobFlags {
	kf := &KnobFlags{fs: fs, values: make(map[string]*float64, len(knobNames))}
	for _, name := range knobNames {
		kf.values[name] = fs.Float64(name, 0, fmt.Sprintf("%s knob in [0,1] (default from preset)", name))
	}
	return kf
}

// Apply overwrites k with every knob flag given on the command line.
func (kf *KnobFlags) Apply(k *harmonizer.Knobs) error {
	var err error
	kf.fs.Visit(func(f *flag.Flag) {
		v, ok := kf.values[f.Name]
		if !ok || err != nil {
			return
		}
		err = setKnobChecked(k, f.Name, *v)
	})
	return err
}

// ParseAssignment parses a "name=value" knob line such as "mix=0.7".
func ParseAssignment(line string) (string, float64, error) {
	name, raw, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return "", 0, fmt.Errorf("expected name=value, got %q", line)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", 0, fmt.Errorf("knob %s: %w", name, err)
	}
	return name, v, nil
}

// ApplyAssignment parses line and sets the named knob in k.
func ApplyAssignment(k *harmonizer.Knobs, line string) error {
	name, v, err := ParseAssignment(line)
	if err != nil {
		return err
	}
	return setKnobChecked(k, name, v)
}

func setKnobChecked(k *harmonizer.Knobs, name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("knob %s must be in [0,1]: %g", name, v)
	}
	return preset.SetKnob(k, name, float32(v))
}

// Fatal logs msg with args and exits.
func Fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
