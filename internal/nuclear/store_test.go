package nuclear_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/nuclear"
)

func TestStore_Record(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO nuclear_failures")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := nuclear.New(db, 0, 0)
	err := store.Record(context.Background(), "n1", entity.FailureExtraction, "https://example.com/x", "Title", "boom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStore_DuePending(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "failure_type", "original_url", "content_title", "error_message", "retry_status",
		"retry_count", "first_failed_at", "last_retry_at", "next_retry_at", "success_url", "human_notes", "metadata",
	}).AddRow("n1", entity.FailureNetwork, "https://example.com/x", "T", "boom", entity.RetryPending,
		2, now, nil, now, nil, nil, []byte(`{}`))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, failure_type")).
		WillReturnRows(rows)

	store := nuclear.New(db, 100, 30)
	due, err := store.DuePending(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 || due[0].ID != "n1" {
		t.Fatalf("expected one due record, got %+v", due)
	}
}

func TestStore_ScheduleNextRetry_EscalatesAtThreshold(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE nuclear_failures SET retry_status = $1, retry_count = $2, error_message = $3")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := nuclear.New(db, 100, 3)
	if err := store.ScheduleNextRetry(context.Background(), "n1", 2, "still failing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStore_ScheduleNextRetry_ReschedulesBelowThreshold(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE nuclear_failures SET retry_status = $1, retry_count = $2, next_retry_at = $3")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := nuclear.New(db, 100, 30)
	if err := store.ScheduleNextRetry(context.Background(), "n1", 0, "transient"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
