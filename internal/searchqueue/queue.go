// Package searchqueue persists Search Requests in priority/FIFO order
// (spec §4.8), grounded on the teacher's database/sql + pgx-stdlib-driver
// repository idiom (internal/infra/adapter/persistence/postgres).
package searchqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ingestengine/internal/domain/entity"
)

// Queue is the persisted search_queue + search_stats table pair.
type Queue struct {
	db *sql.DB
}

func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue inserts one pending Search Request.
func (q *Queue) Enqueue(ctx context.Context, id, query string, priority entity.SearchPriority, maxAttempts int, metadata map[string]any) error {
	metaRaw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("Enqueue: marshal metadata: %w", err)
	}
	const query_ = `
INSERT INTO search_queue (id, query, priority, status, attempts, max_attempts, created_at, metadata)
VALUES ($1, $2, $3, $4, 0, $5, $6, $7)`
	_, err = q.db.ExecContext(ctx, query_, id, query, priority, entity.SearchPending, maxAttempts, time.Now().UTC(), metaRaw)
	if err != nil {
		return fmt.Errorf("Enqueue: %w", err)
	}
	return nil
}

// Dequeue atomically claims the oldest, lowest-priority pending request
// whose attempts have not yet exhausted max_attempts, marking it
// in-progress and stamping last_attempt.
func (q *Queue) Dequeue(ctx context.Context) (*entity.SearchRequest, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Dequeue: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const selectQuery = `
SELECT id, query, priority, status, attempts, max_attempts, created_at, result_url, error_message, metadata
FROM search_queue
WHERE status = $1 AND attempts < max_attempts
ORDER BY priority ASC, created_at ASC
LIMIT 1
FOR UPDATE SKIP LOCKED`

	var req entity.SearchRequest
	var resultURL, errMsg sql.NullString
	var metaRaw []byte
	err = tx.QueryRowContext(ctx, selectQuery, entity.SearchPending).Scan(
		&req.ID, &req.Query, &req.Priority, &req.Status, &req.Attempts, &req.MaxAttempts,
		&req.CreatedAt, &resultURL, &errMsg, &metaRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Dequeue: select: %w", err)
	}

	now := time.Now().UTC()
	const updateQuery = `UPDATE search_queue SET status = $1, last_attempt = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, updateQuery, entity.SearchInProgress, now, req.ID); err != nil {
		return nil, fmt.Errorf("Dequeue: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Dequeue: commit: %w", err)
	}

	req.Status = entity.SearchInProgress
	req.LastAttempt = &now
	req.ResultURL = resultURL.String
	req.ErrorMessage = errMsg.String
	if len(metaRaw) > 0 {
		_ = json.Unmarshal(metaRaw, &req.Metadata)
	}
	return &req, nil
}

// MarkCompleted writes the result URL and terminal completed status.
func (q *Queue) MarkCompleted(ctx context.Context, id, resultURL string) error {
	const query = `UPDATE search_queue SET status = $1, result_url = $2 WHERE id = $3`
	_, err := q.db.ExecContext(ctx, query, entity.SearchCompleted, resultURL, id)
	if err != nil {
		return fmt.Errorf("MarkCompleted: %w", err)
	}
	return nil
}

// MarkFailed sets status=failed and, unless increment is false (used to
// permanently skip a request without inflating its attempt count),
// increments attempts.
func (q *Queue) MarkFailed(ctx context.Context, id, message string, increment bool) error {
	query := `UPDATE search_queue SET status = $1, error_message = $2 WHERE id = $3`
	if increment {
		query = `UPDATE search_queue SET status = $1, error_message = $2, attempts = attempts + 1 WHERE id = $3`
	}
	_, err := q.db.ExecContext(ctx, query, entity.SearchFailed, message, id)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

// MarkRateLimited increments attempts but leaves status=pending so the
// next Dequeue retries it later.
func (q *Queue) MarkRateLimited(ctx context.Context, id string) error {
	const query = `UPDATE search_queue SET status = $1, attempts = attempts + 1 WHERE id = $2`
	_, err := q.db.ExecContext(ctx, query, entity.SearchPending, id)
	if err != nil {
		return fmt.Errorf("MarkRateLimited: %w", err)
	}
	return nil
}

// ResetFailedToPending is the "nuclear retry" batch operation: all failed
// records go back to pending with attempts reset to 0.
func (q *Queue) ResetFailedToPending(ctx context.Context) (int64, error) {
	const query = `UPDATE search_queue SET status = $1, attempts = 0 WHERE status = $2`
	res, err := q.db.ExecContext(ctx, query, entity.SearchPending, entity.SearchFailed)
	if err != nil {
		return 0, fmt.Errorf("ResetFailedToPending: %w", err)
	}
	return res.RowsAffected()
}

// CompletedResultFor returns the result URL of a completed request for
// query, if one exists — the Search Fallback Service's cache check.
func (q *Queue) CompletedResultFor(ctx context.Context, query string) (string, bool, error) {
	const sqlQuery = `
SELECT result_url FROM search_queue
WHERE query = $1 AND status = $2 AND result_url IS NOT NULL
ORDER BY created_at DESC
LIMIT 1`
	var resultURL string
	err := q.db.QueryRowContext(ctx, sqlQuery, query, entity.SearchCompleted).Scan(&resultURL)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("CompletedResultFor: %w", err)
	}
	return resultURL, true, nil
}

// RecordStats upserts today's (UTC) search_stats row.
func (q *Queue) RecordStats(ctx context.Context, success bool, quotaUnits int) error {
	date := time.Now().UTC().Format("2006-01-02")
	successInc, failInc := 0, 0
	if success {
		successInc = 1
	} else {
		failInc = 1
	}
	const query = `
INSERT INTO search_stats (date, searches_performed, successful_searches, failed_searches, quota_used)
VALUES ($1, 1, $2, $3, $4)
ON CONFLICT (date) DO UPDATE SET
  searches_performed = search_stats.searches_performed + 1,
  successful_searches = search_stats.successful_searches + $2,
  failed_searches = search_stats.failed_searches + $3,
  quota_used = search_stats.quota_used + $4`
	_, err := q.db.ExecContext(ctx, query, date, successInc, failInc, quotaUnits)
	if err != nil {
		return fmt.Errorf("RecordStats: %w", err)
	}
	return nil
}
