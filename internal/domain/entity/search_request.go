package entity

import "time"

// SearchPriority orders the Search Queue's dequeue: lower value first.
type SearchPriority int

const (
	SearchUrgent     SearchPriority = 1
	SearchNormal     SearchPriority = 2
	SearchBackground SearchPriority = 3
)

// SearchStatus is the lifecycle state of a persisted SearchRequest.
type SearchStatus string

const (
	SearchPending     SearchStatus = "pending"
	SearchInProgress  SearchStatus = "in-progress"
	SearchCompleted   SearchStatus = "completed"
	SearchFailed      SearchStatus = "failed"
	SearchRateLimited SearchStatus = "rate-limited"
)

// SearchRequest is a persisted row in the search_queue table. Once
// Status=completed the record is terminal and ResultURL is always present.
type SearchRequest struct {
	ID           string
	Query        string
	Priority     SearchPriority
	Status       SearchStatus
	Attempts     int
	MaxAttempts  int
	CreatedAt    time.Time
	LastAttempt  *time.Time
	ResultURL    string
	ErrorMessage string
	Metadata     map[string]any
}
