// Package resilience provides circuit breaker and backend failover primitives
// for the reply, transcription and synthesis collaborators.
//
// [CircuitBreaker] is a three-state breaker (closed → open → half-open) that
// stops hammering a backend which keeps failing. [FallbackGroup] tries an
// ordered list of backends, each behind its own breaker and its own timeout,
// and moves on exactly once per failing entry. Nothing is retried.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// open and its reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes needed to close the
	// breaker again. Default: 1.
	HalfOpenMax int

	// OnStateChange, if set, is called (with the breaker's lock released)
	// after every transition.
	OnStateChange func(name string, from, to State)

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probes    int
	probeWins int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields are
// replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		onStateChange: cfg.OnStateChange,
		now:           cfg.Now,
		state:         StateClosed,
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	var changed []transition
	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		changed = append(changed, cb.setState(StateHalfOpen))
		cb.probes, cb.probeWins = 0, 0
	}
	probing := cb.state == StateHalfOpen
	if probing {
		if cb.probes >= cb.halfOpenMax {
			cb.mu.Unlock()
			cb.notify(changed)
			return ErrCircuitOpen
		}
		cb.probes++
	}
	cb.mu.Unlock()
	cb.notify(changed)

	err := fn()

	cb.mu.Lock()
	var tr transition
	if err != nil {
		tr = cb.recordFailure(probing)
	} else {
		tr = cb.recordSuccess(probing)
	}
	cb.mu.Unlock()
	cb.notify([]transition{tr})
	return err
}

type transition struct {
	from, to State
}

// setState must be called with cb.mu held.
func (cb *CircuitBreaker) setState(to State) transition {
	tr := transition{from: cb.state, to: to}
	cb.state = to
	return tr
}

// recordFailure must be called with cb.mu held.
func (cb *CircuitBreaker) recordFailure(probing bool) transition {
	cb.failures++
	if probing || cb.failures >= cb.maxFailures {
		if cb.state == StateOpen {
			return transition{}
		}
		cb.openedAt = cb.now()
		slog.Warn("circuit breaker opened", "name", cb.name, "consecutive_failures", cb.failures)
		return cb.setState(StateOpen)
	}
	return transition{}
}

// recordSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) recordSuccess(probing bool) transition {
	if !probing {
		cb.failures = 0
		return transition{}
	}
	cb.probeWins++
	if cb.probeWins < cb.halfOpenMax || cb.state != StateHalfOpen {
		return transition{}
	}
	cb.failures, cb.probes, cb.probeWins = 0, 0, 0
	slog.Info("circuit breaker closed after successful probes", "name", cb.name)
	return cb.setState(StateClosed)
}

func (cb *CircuitBreaker) notify(trs []transition) {
	if cb.onStateChange == nil {
		return
	}
	for _, tr := range trs {
		if tr.from != tr.to {
			cb.onStateChange(cb.name, tr.from, tr.to)
		}
	}
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed].
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	tr := cb.setState(StateClosed)
	cb.failures, cb.probes, cb.probeWins = 0, 0, 0
	cb.mu.Unlock()
	cb.notify([]transition{tr})
}
