package searchqueue_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/searchqueue"
)

func TestQueue_Enqueue(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_queue")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := searchqueue.New(db)
	err := q.Enqueue(context.Background(), "s1", "golang retries", entity.SearchNormal, 3, map[string]any{"site": "example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestQueue_Dequeue_EmptyReturnsNil(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, query, priority")).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "query", "priority", "status", "attempts", "max_attempts",
			"created_at", "result_url", "error_message", "metadata",
		}))
	mock.ExpectRollback()

	q := searchqueue.New(db)
	req, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req != nil {
		t.Errorf("expected nil request on empty queue, got %+v", req)
	}
}

func TestQueue_Dequeue_ClaimsOldestLowestPriority(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "query", "priority", "status", "attempts", "max_attempts",
		"created_at", "result_url", "error_message", "metadata",
	}).AddRow("s1", "golang retries", entity.SearchUrgent, entity.SearchPending, 0, 3,
		now, nil, nil, []byte(`{"site":"example.com"}`))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, query, priority")).
		WithArgs(entity.SearchPending).
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE search_queue SET status = $1, last_attempt = $2 WHERE id = $3")).
		WithArgs(entity.SearchInProgress, sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	q := searchqueue.New(db)
	req, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req == nil || req.ID != "s1" {
		t.Fatalf("expected claimed request s1, got %+v", req)
	}
	if req.Status != entity.SearchInProgress {
		t.Errorf("expected claimed request to be marked in-progress, got %s", req.Status)
	}
	if req.LastAttempt == nil {
		t.Error("expected LastAttempt to be stamped")
	}
	if req.Metadata["site"] != "example.com" {
		t.Errorf("expected metadata to round-trip, got %+v", req.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestQueue_Dequeue_RollsBackOnUpdateFailure(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "query", "priority", "status", "attempts", "max_attempts",
		"created_at", "result_url", "error_message", "metadata",
	}).AddRow("s1", "golang retries", entity.SearchUrgent, entity.SearchPending, 0, 3, now, nil, nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, query, priority")).WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE search_queue SET status = $1, last_attempt = $2 WHERE id = $3")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	q := searchqueue.New(db)
	req, err := q.Dequeue(context.Background())
	if err == nil {
		t.Fatal("expected error when the claim update fails")
	}
	if req != nil {
		t.Errorf("expected nil request on failed claim, got %+v", req)
	}
}

func TestQueue_MarkCompleted(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE search_queue SET status = $1, result_url = $2 WHERE id = $3")).
		WithArgs(entity.SearchCompleted, "https://example.com/found", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := searchqueue.New(db)
	if err := q.MarkCompleted(context.Background(), "s1", "https://example.com/found"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestQueue_MarkFailed_IncrementsAttemptsByDefault(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE search_queue SET status = $1, error_message = $2, attempts = attempts + 1 WHERE id = $3")).
		WithArgs(entity.SearchFailed, "timeout", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := searchqueue.New(db)
	if err := q.MarkFailed(context.Background(), "s1", "timeout", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestQueue_MarkFailed_SkipsAttemptIncrementWhenDisabled(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE search_queue SET status = $1, error_message = $2 WHERE id = $3")).
		WithArgs(entity.SearchFailed, "skipped", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := searchqueue.New(db)
	if err := q.MarkFailed(context.Background(), "s1", "skipped", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestQueue_MarkRateLimited_ReturnsToPending(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE search_queue SET status = $1, attempts = attempts + 1 WHERE id = $2")).
		WithArgs(entity.SearchPending, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := searchqueue.New(db)
	if err := q.MarkRateLimited(context.Background(), "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestQueue_ResetFailedToPending(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE search_queue SET status = $1, attempts = 0 WHERE status = $2")).
		WithArgs(entity.SearchPending, entity.SearchFailed).
		WillReturnResult(sqlmock.NewResult(0, 4))

	q := searchqueue.New(db)
	n, err := q.ResetFailedToPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 rows reset, got %d", n)
	}
}

func TestQueue_CompletedResultFor_Found(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"result_url"}).AddRow("https://example.com/found")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT result_url FROM search_queue")).
		WithArgs("golang retries", entity.SearchCompleted).
		WillReturnRows(rows)

	q := searchqueue.New(db)
	url, ok, err := q.CompletedResultFor(context.Background(), "golang retries")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || url != "https://example.com/found" {
		t.Errorf("expected cached result url, got %q (found=%v)", url, ok)
	}
}

func TestQueue_CompletedResultFor_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT result_url FROM search_queue")).
		WillReturnRows(sqlmock.NewRows([]string{"result_url"}))

	q := searchqueue.New(db)
	_, ok, err := q.CompletedResultFor(context.Background(), "golang retries")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no cached result")
	}
}

func TestQueue_RecordStats_UpsertsTodaysRow(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_stats")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	q := searchqueue.New(db)
	if err := q.RecordStats(context.Background(), true, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
