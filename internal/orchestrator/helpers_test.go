package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/droidvox/pkg/audio"
)

// ── test doubles ─────────────────────────────────────────────────────────────

type fakeSpeaker struct {
	mu      sync.Mutex
	texts   []string
	err     error
	onSpeak func(text string)
}

func (s *fakeSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	hook, err := s.onSpeak, s.err
	s.mu.Unlock()
	if hook != nil {
		hook(text)
	}
	return err
}

func (s *fakeSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type clipCall struct {
	id     string
	volume float64
	maxDur time.Duration
}

type fakeClips struct {
	mu    sync.Mutex
	calls []clipCall
	err   error
}

func (c *fakeClips) Play(_ context.Context, id string, volume float64, maxDur time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, clipCall{id: id, volume: volume, maxDur: maxDur})
	return c.err
}

// seqRand returns Float64 values from floats in order and IntN results from
// ints in order; exhausted sequences return 0.
type seqRand struct {
	floats []float64
	ints   []int
}

func (r *seqRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	f := r.floats[0]
	r.floats = r.floats[1:]
	return f
}

func (r *seqRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	i := r.ints[0]
	r.ints = r.ints[1:]
	return i % n
}

const (
	testRate      = 16000
	testFrameSize = 4000 // 250 ms
)

// frame returns a frame whose RMS is exactly level.
func frame(level float32) audio.AudioFrame {
	s := make([]float32, testFrameSize)
	for i := range s {
		s[i] = level
	}
	return audio.AudioFrame{Samples: s, SampleRate: testRate}
}

func frames(level float32, n int) []audio.AudioFrame {
	out := make([]audio.AudioFrame, n)
	for i := range out {
		out[i] = frame(level)
	}
	return out
}
