package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/droidvox/internal/idle"
	"github.com/MrWong99/droidvox/internal/observe"
	"github.com/MrWong99/droidvox/internal/vad"
)

// SessionConfig wires the consumer loop.
type SessionConfig struct {
	// Frames is the consumer side of the capture queue.
	Frames    vad.FrameReader
	Segmenter *vad.Segmenter
	Clock     *idle.Clock

	// Idle may be nil to disable idle activity.
	Idle  *idle.Scheduler
	Turns *Turns

	// Poll is the sleep between empty polls of Frames. Default 10ms.
	Poll time.Duration

	Metrics *observe.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is the single consumer loop. It owns the segmenter, the
// conversation memory (through Turns) and the interaction clock; nothing
// else may touch them while Run is active.
type Session struct {
	cfg SessionConfig
}

// NewSession returns a session for cfg.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Poll <= 0 {
		cfg.Poll = 10 * time.Millisecond
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{cfg: cfg}
}

// Run processes frames until ctx is cancelled. It returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	slog.Info("listening", "threshold", s.cfg.Segmenter.Threshold())
	t := time.NewTimer(s.cfg.Poll)
	defer t.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Step(ctx) {
			continue
		}
		t.Reset(s.cfg.Poll)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Step runs one iteration of the loop: an idle check, then at most one
// frame through the segmenter, handling the turn if it completes an
// utterance. It reports whether a frame was consumed.
func (s *Session) Step(ctx context.Context) bool {
	if s.cfg.Idle != nil {
		busy := s.cfg.Segmenter.State() != vad.StateIdle
		outcome := s.cfg.Idle.Tick(ctx, busy)
		switch outcome {
		case idle.OutcomeFired:
			s.cfg.Metrics.RecordIdle(ctx, outcome.String())
			s.Rearm(ctx)
		case idle.OutcomeSkipped:
			s.cfg.Metrics.RecordIdle(ctx, outcome.String())
		}
	}

	f, ok := s.cfg.Frames.TryPop()
	if !ok {
		return false
	}
	ev := s.cfg.Segmenter.Process(f)
	switch ev.Type {
	case vad.EventSpeechStart:
		slog.Debug("speech detected", "energy", ev.Energy)
		s.cfg.Clock.Touch(s.cfg.Now())
	case vad.EventSpeechResume:
		s.cfg.Clock.Touch(s.cfg.Now())
	case vad.EventUtteranceComplete:
		slog.Debug("utterance complete", "frames", len(ev.Utterance.Frames), "duration", ev.Utterance.Duration())
		s.cfg.Clock.Touch(s.cfg.Now())
		s.cfg.Turns.Handle(ctx, ev.Utterance)
		s.Rearm(ctx)
	}
	return true
}

// Rearm discards every frame captured while the droid was busy, returns the
// segmenter to idle and touches the interaction clock.
func (s *Session) Rearm(ctx context.Context) {
	n := s.cfg.Frames.Flush()
	s.cfg.Segmenter.Reset()
	s.cfg.Clock.Touch(s.cfg.Now())
	s.cfg.Metrics.RecordFlush(ctx, n)
	if n > 0 {
		slog.Debug("flushed frames captured during output", "frames", n)
	}
}
