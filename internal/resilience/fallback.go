package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] failed or
// was skipped because its breaker is open.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig holds the breaker settings applied to every backend in a
// [FallbackGroup]. The Name field is overwritten per entry.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// guarded pairs one backend with its own circuit breaker.
type guarded[T any] struct {
	name    string
	backend T
	breaker *CircuitBreaker
}

// FallbackGroup holds an ordered list of interchangeable stage backends, each
// behind its own circuit breaker. Calls go to the first backend whose breaker
// admits them; a failure moves on to the next.
//
// Registration happens during startup; afterwards the group is safe for
// concurrent use.
type FallbackGroup[T any] struct {
	entries []guarded[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group with primary as its only backend.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a backend. Backends are tried in registration order.
func (fg *FallbackGroup[T]) AddFallback(name string, backend T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, guarded[T]{
		name:    name,
		backend: backend,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Execute runs fn against the first healthy backend. It returns nil on the
// first success and [ErrAllFailed] wrapping the last error when every backend
// failed or was skipped.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(backend T) (struct{}, error) {
		return struct{}{}, fn(backend)
	})
	return err
}

// ExecuteWithResult runs fn against the first healthy backend and returns its
// result. A package-level function because methods cannot introduce the
// result type parameter.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error

	for i := range fg.entries {
		entry := &fg.entries[i]

		var result R
		err := entry.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(entry.backend)
			return callErr
		})
		if err == nil {
			return result, nil
		}

		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping backend, circuit open", "provider", entry.name)
		} else {
			slog.Warn("backend failed, trying next", "provider", entry.name, "error", err)
		}
	}

	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
