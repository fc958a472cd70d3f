// Package retry extends the teacher's WithBackoff helper into the full
// four-shape backoff schedule (fixed/linear/exponential/fibonacci) the
// resilience registry's named policies require, classifying errors by
// errorkind.Kind instead of by inspecting net/syscall error values, and
// persisting a bounded history of attempts per service.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/errorkind"
)

// History records retry attempts for later inspection (health views, the
// nuclear-retry escalation path). Implementations keep only the most
// recent 100 entries per service.
type History interface {
	Record(service string, attempt entity.RecoveryAttempt) error
}

// Manager runs operations under a named RetryPolicy, recording each
// attempt to History if one is configured.
type Manager struct {
	history History
}

func NewManager(history History) *Manager {
	return &Manager{history: history}
}

// Do runs fn under policy, retrying on errorkind-classified retryable
// failures up to policy.MaxAttempts times. Circuit-open errors propagate
// immediately without consuming a retry attempt: the breaker, not the
// retry manager, owns recovery timing for those.
func (m *Manager) Do(ctx context.Context, service string, policy entity.RetryPolicy, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)

		if lastErr == nil {
			m.record(service, attempt, errorkind.Unknown, nil, 0, true)
			if attempt > 1 {
				slog.Info("operation succeeded after retry", slog.String("service", service), slog.Int("attempt", attempt))
			}
			return nil
		}

		kind := errorkind.KindOf(lastErr)
		if kind == errorkind.CircuitOpen {
			m.record(service, attempt, kind, lastErr, 0, false)
			return lastErr
		}

		retryable := policy.RetryableKinds != nil && policy.RetryableKinds[kind] || errorkind.Retryable(kind)
		if !retryable {
			m.record(service, attempt, kind, lastErr, 0, false)
			return lastErr
		}

		if attempt == policy.MaxAttempts {
			m.record(service, attempt, kind, lastErr, 0, false)
			break
		}

		wait := m.nextDelay(policy, attempt)
		m.record(service, attempt, kind, lastErr, wait, false)

		slog.Warn("operation failed, retrying",
			slog.String("service", service),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.MaxAttempts),
			slog.Duration("delay", wait),
			slog.Any("error", lastErr))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", policy.MaxAttempts, lastErr)
}

// nextDelay computes the delay before the next attempt, per policy.Backoff,
// clamped to MaxDelay and optionally jittered ±10%. Each shape derives its
// raw delay from policy.BaseDelay and attempt alone, never from a previous
// attempt's already-jittered delay, so jitter cannot compound across
// attempts.
func (m *Manager) nextDelay(policy entity.RetryPolicy, attempt int) time.Duration {
	var raw time.Duration

	switch policy.Backoff {
	case entity.BackoffFixed:
		raw = policy.BaseDelay
	case entity.BackoffLinear:
		mult := policy.Multiplier
		if mult <= 0 {
			mult = 1
		}
		raw = policy.BaseDelay + time.Duration(float64(policy.BaseDelay)*mult*float64(attempt-1))
	case entity.BackoffExponential:
		mult := policy.Multiplier
		if mult <= 0 {
			mult = 2
		}
		raw = time.Duration(float64(policy.BaseDelay) * math.Pow(mult, float64(attempt-1)))
	case entity.BackoffFibonacci:
		raw = policy.BaseDelay * time.Duration(fibonacci(attempt))
	default:
		raw = policy.BaseDelay
	}

	if policy.MaxDelay > 0 && raw > policy.MaxDelay {
		raw = policy.MaxDelay
	}
	if policy.Jitter {
		raw = addJitter(raw, 0.1)
	}
	return raw
}

func fibonacci(n int) int {
	if n <= 1 {
		return 1
	}
	a, b := 1, 1
	for i := 2; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}

// addJitter perturbs duration by up to ±fraction of itself.
func addJitter(duration time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return duration
	}
	// #nosec G404 -- jitter does not need cryptographic randomness.
	delta := (rand.Float64()*2 - 1) * fraction
	jittered := time.Duration(float64(duration) * (1 + delta))
	if jittered < 0 {
		return 0
	}
	return jittered
}

func (m *Manager) record(service string, attempt int, kind errorkind.Kind, err error, delay time.Duration, success bool) {
	if m.history == nil {
		return
	}
	rec := entity.RecoveryAttempt{
		Timestamp:     time.Now(),
		AttemptNumber: attempt,
		ErrorKind:     kind,
		DelayApplied:  delay,
		Success:       success,
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	_ = m.history.Record(service, rec)
}
