// Package jobqueue persists URL Jobs in priority/FIFO order for the
// Worker Pool (spec §4.11), grounded on the same database/sql +
// pgx-stdlib-driver repository idiom as internal/searchqueue.
package jobqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ingestengine/internal/domain/entity"
)

// Queue is the persisted worker_jobs table.
type Queue struct {
	db *sql.DB
}

func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue inserts one pending job. data carries at minimum
// {url, source, submitted_at}.
func (q *Queue) Enqueue(ctx context.Context, id, jobType string, priority int, data map[string]any) error {
	dataRaw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("Enqueue: marshal data: %w", err)
	}
	const query = `
INSERT INTO worker_jobs (id, type, data, priority, status, created_at, retry_count)
VALUES ($1, $2, $3, $4, $5, $6, 0)`
	_, err = q.db.ExecContext(ctx, query, id, jobType, dataRaw, priority, entity.JobPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("Enqueue: %w", err)
	}
	return nil
}

// Dequeue atomically claims the highest-priority, oldest pending job and
// assigns it to workerID.
func (q *Queue) Dequeue(ctx context.Context, workerID string) (*entity.Job, map[string]any, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("Dequeue: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const selectQuery = `
SELECT id, type, data, priority, status, created_at, assigned_at, completed_at,
       assigned_worker, retry_count, result
FROM worker_jobs
WHERE status = $1
ORDER BY priority DESC, created_at ASC
LIMIT 1
FOR UPDATE SKIP LOCKED`

	var job entity.Job
	var jobType string
	var dataRaw, resultRaw []byte
	var assignedAt, completedAt sql.NullTime
	var assignedWorker sql.NullString
	err = tx.QueryRowContext(ctx, selectQuery, entity.JobPending).Scan(
		&job.ID, &jobType, &dataRaw, &job.Priority, &job.Status, &job.CreatedAt,
		&assignedAt, &completedAt, &assignedWorker, &job.RetryCount, &resultRaw)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("Dequeue: select: %w", err)
	}

	now := time.Now().UTC()
	const updateQuery = `UPDATE worker_jobs SET status = $1, assigned_worker = $2, assigned_at = $3 WHERE id = $4`
	if _, err := tx.ExecContext(ctx, updateQuery, entity.JobRunning, workerID, now, job.ID); err != nil {
		return nil, nil, fmt.Errorf("Dequeue: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("Dequeue: commit: %w", err)
	}

	job.Status = entity.JobRunning
	job.AssignedAt = &now
	job.AssignedWorker = workerID

	var data map[string]any
	if len(dataRaw) > 0 {
		_ = json.Unmarshal(dataRaw, &data)
	}
	if url, ok := data["url"].(string); ok {
		job.URL = url
	}
	if source, ok := data["source"].(string); ok {
		job.Source = source
	}
	if len(resultRaw) > 0 {
		_ = json.Unmarshal(resultRaw, &job.Result)
	}
	return &job, data, nil
}

// MarkCompleted writes the result payload and terminal completed status.
func (q *Queue) MarkCompleted(ctx context.Context, id string, result map[string]any) error {
	resultRaw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("MarkCompleted: marshal result: %w", err)
	}
	const query = `UPDATE worker_jobs SET status = $1, result = $2, completed_at = $3 WHERE id = $4`
	_, err = q.db.ExecContext(ctx, query, entity.JobCompleted, resultRaw, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("MarkCompleted: %w", err)
	}
	return nil
}

// MarkFailed sets status=failed and records the failure in the result
// payload.
func (q *Queue) MarkFailed(ctx context.Context, id, reason string) error {
	resultRaw, _ := json.Marshal(map[string]any{"error": reason})
	const query = `UPDATE worker_jobs SET status = $1, result = $2, completed_at = $3 WHERE id = $4`
	_, err := q.db.ExecContext(ctx, query, entity.JobFailed, resultRaw, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

// CountsByStatus summarizes the table by status, for the status CLI
// subcommand and ops dashboards.
func (q *Queue) CountsByStatus(ctx context.Context) (map[entity.JobStatus]int, error) {
	const query = `SELECT status, count(*) FROM worker_jobs GROUP BY status`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("CountsByStatus: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[entity.JobStatus]int)
	for rows.Next() {
		var status entity.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("CountsByStatus: scan: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// RequeuePending increments retry_count and returns the job to pending so
// the Retry Policy governs the next attempt.
func (q *Queue) RequeuePending(ctx context.Context, id string) error {
	const query = `UPDATE worker_jobs SET status = $1, retry_count = retry_count + 1, assigned_worker = NULL WHERE id = $2`
	_, err := q.db.ExecContext(ctx, query, entity.JobPending, id)
	if err != nil {
		return fmt.Errorf("RequeuePending: %w", err)
	}
	return nil
}
