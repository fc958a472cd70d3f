package entity

import "time"

// BreakerStatus is one of the three circuit-breaker states.
type BreakerStatus string

const (
	BreakerClosed   BreakerStatus = "closed"
	BreakerOpen     BreakerStatus = "open"
	BreakerHalfOpen BreakerStatus = "half-open"
)

// BreakerState is the persisted snapshot of one named circuit breaker.
// Threshold transitions are the only legal way to change State.
type BreakerState struct {
	Name                string
	State               BreakerStatus
	FailureThreshold    int
	SuccessThreshold    int
	RecoveryTimeout     time.Duration
	ConsecutiveFailures int
	ConsecutiveSuccesses int
	LastFailureAt       time.Time
	StateChangedAt      time.Time
	TotalRequests       int64
	TotalSuccesses      int64
	TotalFailures       int64
}
