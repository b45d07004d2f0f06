package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for each entry's breaker. Name is
	// overwritten with the entry name.
	CircuitBreaker CircuitBreakerConfig

	// OnFailure, if set, is called for every entry that was tried and failed.
	// Entries skipped because their circuit is open are not reported.
	OnFailure func(name string, err error)
}

// Entry is one backend in a [FallbackGroup].
type Entry[T any] struct {
	Name  string
	Value T

	// Timeout bounds a single attempt against this entry. Zero means the
	// attempt is bounded only by the caller's context.
	Timeout time.Duration
}

type fallbackEntry[T any] struct {
	Entry[T]
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and zero or more fallbacks of the same
// backend type. Entries are tried in order; each is attempted at most once
// per call.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] whose first entry is primary.
func NewFallbackGroup[T any](primary Entry[T], cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.Add(primary)
	return fg
}

// Add appends a fallback. Fallbacks are tried in the order they are added.
// Add must not be called concurrently with execution.
func (fg *FallbackGroup[T]) Add(e Entry[T]) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = e.Name
	fg.entries = append(fg.entries, fallbackEntry[T]{Entry: e, breaker: NewCircuitBreaker(cbCfg)})
}

// Names returns the entry names in try order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.Name
	}
	return names
}

// Execute tries fn against each entry in order until one succeeds.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(context.Context, T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(ctx context.Context, v T) (struct{}, error) {
		return struct{}{}, fn(ctx, v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in order until one succeeds
// and returns its result. Each attempt runs under the entry's timeout. A
// cancelled ctx stops the walk immediately. When every entry fails the error
// wraps [ErrAllFailed] and every individual failure.
//
// This is a package-level function because Go does not support method-level
// type parameters.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		entry := &fg.entries[i]

		var result R
		err := entry.breaker.Execute(func() error {
			attemptCtx, cancel := ctx, context.CancelFunc(func() {})
			if entry.Timeout > 0 {
				attemptCtx, cancel = context.WithTimeout(ctx, entry.Timeout)
			}
			defer cancel()
			var innerErr error
			result, innerErr = fn(attemptCtx, entry.Value)
			return innerErr
		})
		if err == nil {
			if i > 0 {
				slog.Info("fallback provider answered", "provider", entry.Name)
			}
			return result, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", entry.Name, err))
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.Name)
			continue
		}
		if fg.cfg.OnFailure != nil {
			fg.cfg.OnFailure(entry.Name, err)
		}
		slog.Warn("provider failed", "provider", entry.Name, "err", err)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
