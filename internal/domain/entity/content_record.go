package entity

import "time"

// ContentRecord is the persisted, deduplicated extraction result keyed by
// URL. Invariant: a URL fingerprint maps to at most one content record.
type ContentRecord struct {
	URL         string
	Title       string
	Content     string
	ContentType string // article, podcast, document, ...
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const ContentTypeArticle = "article"
