package entity

import (
	"time"

	"ingestengine/internal/errorkind"
)

// RecoveryAttempt is one persisted record of a single retry-manager attempt.
// Services keep the last 100 per name.
type RecoveryAttempt struct {
	Timestamp     time.Time
	AttemptNumber int
	ErrorKind     errorkind.Kind
	ErrorMessage  string
	DelayApplied  time.Duration
	Success       bool
}
