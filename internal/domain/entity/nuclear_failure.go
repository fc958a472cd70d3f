package entity

import "time"

// FailureKind classifies why a URL ended up in the Nuclear Retry Store.
type FailureKind string

const (
	FailureURLProcessing FailureKind = "url-processing"
	FailureSearch        FailureKind = "search"
	FailureExtraction    FailureKind = "extraction"
	FailureAPI           FailureKind = "api"
	FailureNetwork       FailureKind = "network"
	FailureUnknown       FailureKind = "unknown"
)

// RetryStatus is the lifecycle state of a NuclearFailure record.
type RetryStatus string

const (
	RetryPending                RetryStatus = "pending"
	RetryInProgress              RetryStatus = "in-progress"
	RetrySuccess                 RetryStatus = "success"
	RetryPermanentFailure         RetryStatus = "permanent-failure"
	RetryHumanInterventionRequired RetryStatus = "human-intervention-required"
)

// NuclearFailure is a long-lived record of a URL that survived the full
// cascade and the search fallback without success. Invariant: once
// RetryCount >= the configured human-intervention threshold, RetryStatus
// becomes RetryHumanInterventionRequired and the record is never scheduled
// again.
type NuclearFailure struct {
	ID           string
	Kind         FailureKind
	OriginalURL  string
	Title        string
	LatestError  string
	RetryStatus  RetryStatus
	RetryCount   int
	FirstFailedAt time.Time
	LastRetryAt  *time.Time
	NextRetryAt  time.Time
	SuccessURL   string
	HumanNotes   string
	Metadata     map[string]any
}
