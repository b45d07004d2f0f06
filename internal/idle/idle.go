// Package idle fires ambient behaviour after a period without interaction.
//
// The [Clock] records the last interaction (speech start, utterance
// completion, end of synthesized output). The [Scheduler] is ticked from the
// consumer loop; when the clock has been quiet for longer than the timeout and
// nothing is being recorded, it rolls a probability gate and, on success, runs
// the configured activity.
package idle

import (
	"context"
	"log/slog"
	"time"
)

// Clock is the single interaction timestamp shared by the consumer loop.
// It is not safe for concurrent use.
type Clock struct {
	last time.Time
}

// NewClock returns a clock whose last interaction is now.
func NewClock(now time.Time) *Clock { return &Clock{last: now} }

// Touch records an interaction at t.
func (c *Clock) Touch(t time.Time) { c.last = t }

// Last returns the last interaction time.
func (c *Clock) Last() time.Time { return c.last }

// Since reports how long before now the last interaction happened.
func (c *Clock) Since(now time.Time) time.Duration { return now.Sub(c.last) }

// Rand is the random source for the probability gate. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// Activity is the ambient behaviour run when the scheduler fires.
type Activity func(ctx context.Context) error

// Outcome reports what a [Scheduler.Tick] did.
type Outcome int

const (
	// OutcomeNotDue means the idle timeout has not elapsed.
	OutcomeNotDue Outcome = iota

	// OutcomeBusy means an utterance is being recorded, so idle behaviour is
	// suppressed regardless of the clock.
	OutcomeBusy

	// OutcomeSkipped means the timeout elapsed but the probability gate
	// rolled against firing.
	OutcomeSkipped

	// OutcomeFired means the activity ran.
	OutcomeFired
)

// String returns the human-readable name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNotDue:
		return "not_due"
	case OutcomeBusy:
		return "busy"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFired:
		return "fired"
	default:
		return "unknown"
	}
}

// Scheduler decides when idle activity runs.
type Scheduler struct {
	clock       *Clock
	activity    Activity
	timeout     time.Duration
	probability float64
	resetOnSkip bool
	rng         Rand
	now         func() time.Time
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithProbability sets the chance in [0, 1] that an eligible tick fires.
// Default 1.
func WithProbability(p float64) Option {
	return func(s *Scheduler) { s.probability = p }
}

// WithResetOnSkip controls whether a failed probability roll restarts the
// timeout (true, the default) or lets the very next tick roll again.
func WithResetOnSkip(reset bool) Option {
	return func(s *Scheduler) { s.resetOnSkip = reset }
}

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler returns a scheduler that runs activity once clock has been
// idle for longer than timeout. rng drives the probability gate.
func NewScheduler(clock *Clock, timeout time.Duration, rng Rand, activity Activity, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:       clock,
		activity:    activity,
		timeout:     timeout,
		probability: 1,
		resetOnSkip: true,
		rng:         rng,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Tick evaluates the scheduler once. busy must be true while the segmenter
// is recording or in trailing silence. When the activity fires, the clock is
// touched at its completion time; activity errors are logged and swallowed.
func (s *Scheduler) Tick(ctx context.Context, busy bool) Outcome {
	if busy {
		return OutcomeBusy
	}
	now := s.now()
	if s.clock.Since(now) <= s.timeout {
		return OutcomeNotDue
	}
	if s.rng.Float64() >= s.probability {
		if s.resetOnSkip {
			s.clock.Touch(now)
		}
		return OutcomeSkipped
	}

	if s.activity != nil {
		if err := s.activity(ctx); err != nil {
			slog.Warn("idle: activity failed", "err", err)
		}
	}
	s.clock.Touch(s.now())
	return OutcomeFired
}
