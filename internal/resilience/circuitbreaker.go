// Package resilience shields the caption pipeline from misbehaving stage
// backends. A [CircuitBreaker] stops hammering a backend that fails
// repeatedly, and a [FallbackGroup] fails a stage over to the next configured
// backend while the primary's breaker is open.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// is open and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker defaults, applied where [CircuitBreakerConfig] fields are zero.
const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 30 * time.Second
	defaultHalfOpenMax  = 3
)

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen]. Entered after
	// too many consecutive failures; left once the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through to find
	// out whether the backend recovered.
	StateHalfOpen
)

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

// CircuitBreakerConfig tunes one [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in log output, typically the backend name.
	Name string

	// MaxFailures is the number of consecutive failures that trips the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long a tripped breaker rejects calls before
	// probing the backend again. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget in the half-open state. The breaker
	// closes after this many consecutive successful probes. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker is a three-state breaker (closed, open, half-open) guarding
// one stage backend.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu         sync.Mutex
	state      State
	failures   int // consecutive failures while closed
	lastFailure time.Time
	probes     int // calls admitted while half-open
	probeFails int
}

// NewCircuitBreaker creates a breaker from cfg, substituting defaults for
// zero fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = defaultHalfOpenMax
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Execute runs fn unless the breaker rejects the call. The returned error is
// fn's own error, or [ErrCircuitOpen] when the call was not admitted.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, admitted := cb.admit()
	if !admitted {
		return ErrCircuitOpen
	}

	err := fn()
	cb.observe(err, probe)
	return err
}

// admit decides whether a call may proceed and whether it counts as a
// half-open probe.
func (cb *CircuitBreaker) admit() (probe, admitted bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.resetTimeout {
			return false, false
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeFails = 0
		slog.Info("circuit breaker probing backend", "name", cb.name)
		fallthrough

	case StateHalfOpen:
		if cb.probes >= cb.halfOpenMax {
			// Probe budget spent; wait for the in-flight probes.
			return false, false
		}
		cb.probes++
		return true, true

	default:
		return false, true
	}
}

// observe records a call outcome and drives the state transitions.
func (cb *CircuitBreaker) observe(err error, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if !probe {
			cb.failures = 0
			return
		}
		if cb.probes-cb.probeFails >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			slog.Info("circuit breaker closed, backend recovered", "name", cb.name)
		}
		return
	}

	cb.lastFailure = time.Now()

	if probe {
		// One failed probe sends the breaker straight back to open.
		cb.probeFails++
		cb.state = StateOpen
		cb.failures = cb.maxFailures
		slog.Warn("circuit breaker re-opened, probe failed", "name", cb.name)
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("circuit breaker opened",
			"name", cb.name,
			"consecutive_failures", cb.failures,
		)
	}
}

// State reports the breaker's effective state. An open breaker whose reset
// timeout has elapsed reports half-open; the stored state changes on the
// next Execute.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeFails = 0
	slog.Info("circuit breaker reset", "name", cb.name)
}
