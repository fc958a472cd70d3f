// Package contentstore persists extracted content, keyed by URL, with
// fingerprint-based deduplication. Grounded on the teacher's
// internal/infra/adapter/persistence/postgres/article_repo.go query/scan
// idiom: database/sql against the pgx stdlib driver, with plain ILIKE
// queries for substring search.
package contentstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/urlnorm"
)

// Store persists Content Records in the `content` table (spec §6).
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Fingerprint returns the deduplication key for rawURL (spec §3's Content
// Record invariant: a fingerprint maps to at most one record).
func Fingerprint(rawURL string) string {
	return urlnorm.Fingerprint(rawURL)
}

// FindByFingerprint looks up an existing record by its normalized-URL
// fingerprint, used by the worker to short-circuit duplicate jobs.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*entity.ContentRecord, error) {
	const query = `
SELECT url, title, content, content_type, metadata, created_at, updated_at
FROM content
WHERE fingerprint = $1
LIMIT 1`

	var rec entity.ContentRecord
	var metaRaw []byte
	err := s.db.QueryRowContext(ctx, query, fingerprint).
		Scan(&rec.URL, &rec.Title, &rec.Content, &rec.ContentType, &metaRaw, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByFingerprint: %w", err)
	}
	if len(metaRaw) > 0 {
		_ = json.Unmarshal(metaRaw, &rec.Metadata)
	}
	return &rec, nil
}

// Upsert writes a Content Record, replacing any prior record for the same
// URL (url is the primary key per spec §3).
func (s *Store) Upsert(ctx context.Context, rec entity.ContentRecord) error {
	metaRaw, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("Upsert: marshal metadata: %w", err)
	}

	const query = `
INSERT INTO content (url, fingerprint, title, content, content_type, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (url) DO UPDATE SET
  title = EXCLUDED.title,
  content = EXCLUDED.content,
  content_type = EXCLUDED.content_type,
  metadata = EXCLUDED.metadata,
  updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, query, rec.URL, Fingerprint(rec.URL), rec.Title, rec.Content, rec.ContentType, metaRaw, now)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// Search performs an ILIKE substring search over title/content, grounded
// on the teacher's pg_trgm-backed ILIKE search indexes.
func (s *Store) Search(ctx context.Context, query string, limit, offset int) ([]entity.ContentRecord, error) {
	const sqlQuery = `
SELECT url, title, content, content_type, metadata, created_at, updated_at
FROM content
WHERE title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%'
ORDER BY updated_at DESC
LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, sqlQuery, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]entity.ContentRecord, 0, limit)
	for rows.Next() {
		var rec entity.ContentRecord
		var metaRaw []byte
		if err := rows.Scan(&rec.URL, &rec.Title, &rec.Content, &rec.ContentType, &metaRaw, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("Search: Scan: %w", err)
		}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &rec.Metadata)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
