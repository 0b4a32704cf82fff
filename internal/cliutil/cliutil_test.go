package cliutil

import (
	"flag"
	"testing"

	"github.com/cwbudde/algo-harmonizer/harmonizer"
)

func TestKnobFlagsApplyOnlySetFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	kf := RegisterKnobFlags(fs)
	if err := fs.Parse([]string{"-mix", "0.9", "-scale", "0.6"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	k := harmonizer.Knobs{Mix: 0.5, Gate: 0.1, Scale: 0.2}
	if err := kf.Apply(&k); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if k.Mix != 0.9 || k.Scale != 0.6 || k.Gate != 0.1 {
		t.Fatalf("knobs = %+v", k)
	}
}

func TestKnobFlagsRejectRange(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	kf := RegisterKnobFlags(fs)
	if err := fs.Parse([]string{"-gate", "1.5"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	var k harmonizer.Knobs
	if err := kf.Apply(&k); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestApplyAssignment(t *testing.T) {
	var k harmonizer.Knobs
	if err := ApplyAssignment(&k, " Mix = 0.7 "); err != nil || k.Mix != 0.7 {
		t.Fatalf("ApplyAssignment: err=%v k=%+v", err, k)
	}
	for _, bad := range []string{"mix", "mix=abc", "tone=0.5", "mix=2"} {
		if err := ApplyAssignment(&k, bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestLoadParamsDefaults(t *testing.T) {
	p, err := LoadParams("")
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
