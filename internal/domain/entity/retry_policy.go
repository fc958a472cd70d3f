package entity

import (
	"time"

	"ingestengine/internal/errorkind"
)

// BackoffStrategy selects how the delay between retry attempts grows.
type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
	BackoffFibonacci   BackoffStrategy = "fibonacci"
)

// RetryPolicy configures the Retry Manager's delay schedule.
type RetryPolicy struct {
	Name           string
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Backoff        BackoffStrategy
	Jitter         bool
	Multiplier     float64
	RetryableKinds map[errorkind.Kind]bool
}

// Predefined retry policies from the resilience registry.
var (
	QuickOpsPolicy = RetryPolicy{
		Name: "quick-ops", MaxAttempts: 3,
		BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second,
		Backoff: BackoffExponential, Jitter: true, Multiplier: 2,
	}
	NetworkOpsPolicy = RetryPolicy{
		Name: "network-ops", MaxAttempts: 5,
		BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second,
		Backoff: BackoffExponential, Jitter: true, Multiplier: 2,
	}
	HeavyOpsPolicy = RetryPolicy{
		Name: "heavy-ops", MaxAttempts: 3,
		BaseDelay: 5 * time.Second, MaxDelay: 300 * time.Second,
		Backoff: BackoffLinear, Jitter: true, Multiplier: 1,
	}
	CriticalOpsPolicy = RetryPolicy{
		Name: "critical-ops", MaxAttempts: 7,
		BaseDelay: 1 * time.Second, MaxDelay: 120 * time.Second,
		Backoff: BackoffFibonacci, Jitter: true, Multiplier: 1,
	}
)
