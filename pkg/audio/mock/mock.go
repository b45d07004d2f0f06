// Package mock provides in-memory implementations of [audio.Source] and
// [audio.Sink] for use in unit tests.
//
// Both mocks are safe for concurrent use and record every call so tests can
// assert on what was captured or played.
//
// Typical usage:
//
//	src := &mock.Source{Frames: frames}
//	sink := &mock.Sink{}
//	go src.Run(ctx, queue.Push)
//	_ = sink.Play(ctx, pcm)
//	played := sink.Played()
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/droidvox/pkg/audio"
)

// ─── Source ──────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source]. Run pushes every frame in
// Frames in order and then blocks until the context is cancelled, returning
// RunError if set.
type Source struct {
	mu sync.Mutex

	// Frames are pushed in order when Run starts.
	Frames []audio.AudioFrame

	// RunError is returned by Run immediately after the frames are pushed.
	RunError error

	// CallCountRun records how many times Run was called.
	CallCountRun int
}

// Run implements [audio.Source].
func (s *Source) Run(ctx context.Context, push func(audio.AudioFrame)) error {
	s.mu.Lock()
	s.CallCountRun++
	frames := s.Frames
	runErr := s.RunError
	s.mu.Unlock()

	for _, f := range frames {
		push(f)
	}
	if runErr != nil {
		return runErr
	}
	<-ctx.Done()
	return nil
}

// ─── Sink ────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink].
type Sink struct {
	mu sync.Mutex

	// PlayError is returned by every Play call.
	PlayError error

	// OnPlay, when set, is called synchronously at the start of every Play.
	// Tests use it to simulate frames arriving while output is in progress.
	OnPlay func(audio.PCM)

	played []audio.PCM
}

// Play implements [audio.Sink]. It records pcm and returns PlayError.
func (s *Sink) Play(_ context.Context, pcm audio.PCM) error {
	s.mu.Lock()
	s.played = append(s.played, pcm)
	hook := s.OnPlay
	err := s.PlayError
	s.mu.Unlock()
	if hook != nil {
		hook(pcm)
	}
	return err
}

// Played returns a copy of every buffer passed to Play, in call order.
func (s *Sink) Played() []audio.PCM {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.PCM, len(s.played))
	copy(out, s.played)
	return out
}

// Reset clears the recorded plays.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = nil
}

var (
	_ audio.Source = (*Source)(nil)
	_ audio.Sink   = (*Sink)(nil)
)
