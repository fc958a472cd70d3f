// Package circuitbreaker implements a per-service circuit breaker whose
// state survives process restarts. sony/gobreaker (the teacher's library
// of choice) always constructs a breaker closed with zero counts and has
// no hook to seed it from a prior state, so this is a hand-rolled state
// machine grounded on the same closed/open/half-open contract gobreaker
// exposes, plus the persistence original_source/helpers/circuit_breaker.py
// implements.
package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/errorkind"
)

// Config configures one named breaker.
type Config struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
	CallTimeout      time.Duration
}

// DefaultConfig mirrors the teacher's DefaultConfig shape, retuned to the
// state-machine thresholds spec §4.4 names instead of gobreaker's ratio
// settings.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		CallTimeout:      30 * time.Second,
	}
}

// ErrOpen is returned when a call is rejected without being invoked because
// the breaker is open and not yet eligible for recovery.
var ErrOpen = fmt.Errorf("circuit breaker open")

// StateStore persists breaker state across process restarts. One logical
// breaker name maps to one persisted record.
type StateStore interface {
	Load(name string) (*entity.BreakerState, bool, error)
	Save(state *entity.BreakerState) error
}

// CircuitBreaker is a single named breaker instance. Safe for concurrent use.
type CircuitBreaker struct {
	cfg   Config
	store StateStore

	mu    sync.Mutex
	state entity.BreakerState
}

// New builds a breaker, loading any persisted state for cfg.Name from
// store. A breaker with no persisted state starts closed with zero counts.
func New(cfg Config, store StateStore) *CircuitBreaker {
	cb := &CircuitBreaker{cfg: cfg, store: store}

	if store != nil {
		if loaded, ok, err := store.Load(cfg.Name); err == nil && ok {
			cb.state = *loaded
			return cb
		}
	}
	cb.state = entity.BreakerState{
		Name:             cfg.Name,
		State:            entity.BreakerClosed,
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		RecoveryTimeout:  cfg.RecoveryTimeout,
		StateChangedAt:   time.Now(),
	}
	return cb
}

// Name returns the breaker's logical service name.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() entity.BreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.State
}

// Snapshot returns a copy of the breaker's full persisted state, for the
// resilience registry's health view.
func (cb *CircuitBreaker) Snapshot() entity.BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed with zeroed counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state.State = entity.BreakerClosed
	cb.state.ConsecutiveFailures = 0
	cb.state.ConsecutiveSuccesses = 0
	cb.state.StateChangedAt = time.Now()
	cb.persistLocked()
}

// Execute runs fn under the breaker. If the breaker is open and recovery
// has not yet elapsed, fn is never invoked and ErrOpen is returned wrapped
// with errorkind.CircuitOpen so the retry manager never retries it.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	if err := cb.beforeCall(); err != nil {
		return nil, err
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if cb.cfg.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, cb.cfg.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := fn(callCtx)
	duration := time.Since(start)

	if err == nil && cb.cfg.CallTimeout > 0 && duration > cb.cfg.CallTimeout {
		err = fmt.Errorf("call exceeded breaker timeout %v", cb.cfg.CallTimeout)
	}

	if err != nil {
		cb.recordFailure()
		return nil, err
	}
	cb.recordSuccess()
	return result, nil
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state.State {
	case entity.BreakerOpen:
		if time.Since(cb.state.LastFailureAt) >= cb.state.RecoveryTimeout {
			cb.state.State = entity.BreakerHalfOpen
			cb.state.StateChangedAt = time.Now()
			cb.state.ConsecutiveSuccesses = 0
			cb.persistLocked()
			return nil
		}
		return errorkind.Wrap(errorkind.CircuitOpen, ErrOpen)
	default:
		return nil
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state.TotalRequests++
	cb.state.TotalSuccesses++
	cb.state.ConsecutiveFailures = 0
	cb.state.ConsecutiveSuccesses++

	if cb.state.State == entity.BreakerHalfOpen && cb.state.ConsecutiveSuccesses >= cb.state.SuccessThreshold {
		cb.state.State = entity.BreakerClosed
		cb.state.StateChangedAt = time.Now()
	}
	cb.persistLocked()
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state.TotalRequests++
	cb.state.TotalFailures++
	cb.state.ConsecutiveSuccesses = 0
	cb.state.ConsecutiveFailures++
	cb.state.LastFailureAt = time.Now()

	switch cb.state.State {
	case entity.BreakerHalfOpen:
		cb.state.State = entity.BreakerOpen
		cb.state.StateChangedAt = time.Now()
	case entity.BreakerClosed:
		if cb.state.ConsecutiveFailures >= cb.state.FailureThreshold {
			cb.state.State = entity.BreakerOpen
			cb.state.StateChangedAt = time.Now()
		}
	}
	cb.persistLocked()
}

func (cb *CircuitBreaker) persistLocked() {
	if cb.store == nil {
		return
	}
	snapshot := cb.state
	_ = cb.store.Save(&snapshot)
}
