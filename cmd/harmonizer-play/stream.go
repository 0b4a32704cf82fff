package main

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-harmonizer/harmonizer"
)

const bytesPerFrame = 8 // stereo float32 little endian

// stream pulls blocks from the processor for the audio device. Read is the
// audio callback: it only touches preallocated buffers and publishes knob
// and lock state through atomics and a non-blocking channel.
type stream struct {
	proc  *harmonizer.Processor
	input []float32
	pos   int
	loop  bool

	knobs  atomic.Pointer[harmonizer.Knobs]
	events chan harmonizer.Status
	locked bool
	done   atomic.Bool

	inBlock  []float32
	outBlock []float32
}

func newStream(proc *harmonizer.Processor, input []float32, knobs harmonizer.Knobs, loop bool) *stream {
	s := &stream{
		proc:     proc,
		input:    input,
		loop:     loop,
		events:   make(chan harmonizer.Status, 16),
		inBlock:  make([]float32, proc.BlockSize()),
		outBlock: make([]float32, 2*proc.BlockSize()),
	}
	s.SetKnobs(knobs)
	return s
}

// SetKnobs publishes a new knob snapshot; the next block picks it up.
func (s *stream) SetKnobs(k harmonizer.Knobs) {
	s.knobs.Store(&k)
}

// Knobs returns the latest published snapshot.
func (s *stream) Knobs() harmonizer.Knobs {
	return *s.knobs.Load()
}

// Done reports whether a non-looping input has been fully played.
func (s *stream) Done() bool { return s.done.Load() }

// Events delivers block status on lock transitions.
func (s *stream) Events() <-chan harmonizer.Status { return s.events }

func (s *stream) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	bs := s.proc.BlockSize()
	written := 0
	for written < frames {
		n := min(bs, frames-written)
		in := s.inBlock[:n]
		s.fillInput(in)

		st, err := s.proc.ProcessInterleaved(in, *s.knobs.Load(), s.outBlock[:2*n])
		if err != nil {
			// Unreachable with the sizes above; keep the device fed.
			clear(s.outBlock[:2*n])
		}
		s.publish(st)

		base := written * bytesPerFrame
		for i, v := range s.outBlock[:2*n] {
			binary.LittleEndian.PutUint32(p[base+4*i:], math.Float32bits(v))
		}
		written += n
	}
	return frames * bytesPerFrame, nil
}

func (s *stream) fillInput(dst []float32) {
	for i := range dst {
		if s.pos >= len(s.input) {
			if s.loop && len(s.input) > 0 {
				s.pos = 0
			} else {
				s.done.Store(true)
				dst[i] = 0
				continue
			}
		}
		dst[i] = s.input[s.pos]
		s.pos++
	}
}

// publish queues a lock transition. The reported state only moves when the
// event was delivered, so a full queue retries on the next block instead of
// losing the transition.
func (s *stream) publish(st harmonizer.Status) {
	if st.Locked == s.locked {
		return
	}
	select {
	case s.events <- st:
		s.locked = st.Locked
	default:
	}
}
