// Package nuclear implements the Nuclear Retry Store: the last-resort,
// long-horizon record of URLs that survived the full cascade and the
// search fallback without success (spec §4.10). Grounded on the teacher's
// database/sql persistence idiom.
package nuclear

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"ingestengine/internal/domain/entity"
)

const (
	defaultMaxRetryAttempts          = 100
	defaultHumanInterventionThreshold = 30
	backoffBase                      = 60 * time.Second
	backoffMax                       = 24 * time.Hour
)

// Store is the persisted nuclear_failures table.
type Store struct {
	db                         *sql.DB
	maxRetryAttempts           int
	humanInterventionThreshold int
}

func New(db *sql.DB, maxRetryAttempts, humanInterventionThreshold int) *Store {
	if maxRetryAttempts <= 0 {
		maxRetryAttempts = defaultMaxRetryAttempts
	}
	if humanInterventionThreshold <= 0 {
		humanInterventionThreshold = defaultHumanInterventionThreshold
	}
	return &Store{db: db, maxRetryAttempts: maxRetryAttempts, humanInterventionThreshold: humanInterventionThreshold}
}

// Record inserts a new Nuclear Failure for a URL that exhausted the
// cascade and the search fallback.
func (s *Store) Record(ctx context.Context, id string, kind entity.FailureKind, originalURL, title, latestError string) error {
	now := time.Now().UTC()
	const query = `
INSERT INTO nuclear_failures
  (id, failure_type, original_url, content_title, error_message, retry_status, retry_count, first_failed_at, next_retry_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)`
	_, err := s.db.ExecContext(ctx, query, id, kind, originalURL, title, latestError, entity.RetryPending, now)
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}

// DuePending returns records with status=pending and next_retry_at <= now,
// bounded by retry_count < maxRetryAttempts (spec §4.10's scheduler
// selection).
func (s *Store) DuePending(ctx context.Context, limit int) ([]entity.NuclearFailure, error) {
	const query = `
SELECT id, failure_type, original_url, content_title, error_message, retry_status,
       retry_count, first_failed_at, last_retry_at, next_retry_at, success_url, human_notes, metadata
FROM nuclear_failures
WHERE retry_status = $1 AND next_retry_at <= $2 AND retry_count < $3
ORDER BY next_retry_at ASC
LIMIT $4`
	rows, err := s.db.QueryContext(ctx, query, entity.RetryPending, time.Now().UTC(), s.maxRetryAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("DuePending: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.NuclearFailure
	for rows.Next() {
		var f entity.NuclearFailure
		var lastRetry sql.NullTime
		var successURL, notes sql.NullString
		var metaRaw []byte
		if err := rows.Scan(&f.ID, &f.Kind, &f.OriginalURL, &f.Title, &f.LatestError, &f.RetryStatus,
			&f.RetryCount, &f.FirstFailedAt, &lastRetry, &f.NextRetryAt, &successURL, &notes, &metaRaw); err != nil {
			return nil, fmt.Errorf("DuePending: Scan: %w", err)
		}
		if lastRetry.Valid {
			f.LastRetryAt = &lastRetry.Time
		}
		f.SuccessURL = successURL.String
		f.HumanNotes = notes.String
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &f.Metadata)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Stats is the nuclear store's counts-by-status summary, surfaced over
// the ops status route and the nuclear-retry status CLI subcommand.
type Stats struct {
	CountsByStatus    map[entity.RetryStatus]int
	OldestPendingAt   *time.Time
}

// Stats summarizes the table: how many records sit in each retry_status,
// and the oldest still-pending record's first_failed_at (the longest a
// URL has gone unresolved).
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	out := Stats{CountsByStatus: make(map[entity.RetryStatus]int)}

	const countQuery = `SELECT retry_status, count(*) FROM nuclear_failures GROUP BY retry_status`
	rows, err := s.db.QueryContext(ctx, countQuery)
	if err != nil {
		return out, fmt.Errorf("Stats: counts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var status entity.RetryStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return out, fmt.Errorf("Stats: scan: %w", err)
		}
		out.CountsByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("Stats: rows: %w", err)
	}

	const oldestQuery = `SELECT min(first_failed_at) FROM nuclear_failures WHERE retry_status = $1`
	var oldest sql.NullTime
	if err := s.db.QueryRowContext(ctx, oldestQuery, entity.RetryPending).Scan(&oldest); err != nil {
		return out, fmt.Errorf("Stats: oldest pending: %w", err)
	}
	if oldest.Valid {
		out.OldestPendingAt = &oldest.Time
	}
	return out, nil
}

// MarkInProgress stamps a record as being retried right now.
func (s *Store) MarkInProgress(ctx context.Context, id string) error {
	const query = `UPDATE nuclear_failures SET retry_status = $1, last_retry_at = $2 WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, entity.RetryInProgress, time.Now().UTC(), id)
	return err
}

// MarkSuccess closes out a record that finally resolved.
func (s *Store) MarkSuccess(ctx context.Context, id, successURL string) error {
	const query = `UPDATE nuclear_failures SET retry_status = $1, success_url = $2 WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, entity.RetrySuccess, successURL, id)
	return err
}

// ScheduleNextRetry applies the exponential backoff and either reschedules
// the record or, once retryCount reaches the human-intervention threshold,
// permanently removes it from the scheduler's consideration.
func (s *Store) ScheduleNextRetry(ctx context.Context, id string, retryCount int, latestError string) error {
	retryCount++
	if retryCount >= s.humanInterventionThreshold {
		const query = `UPDATE nuclear_failures SET retry_status = $1, retry_count = $2, error_message = $3 WHERE id = $4`
		_, err := s.db.ExecContext(ctx, query, entity.RetryHumanInterventionRequired, retryCount, latestError, id)
		return err
	}

	delay := time.Duration(math.Min(float64(backoffMax), float64(backoffBase)*math.Pow(2, float64(retryCount))))
	nextRetry := time.Now().UTC().Add(delay)

	const query = `UPDATE nuclear_failures SET retry_status = $1, retry_count = $2, next_retry_at = $3, error_message = $4 WHERE id = $5`
	_, err := s.db.ExecContext(ctx, query, entity.RetryPending, retryCount, nextRetry, latestError, id)
	return err
}
