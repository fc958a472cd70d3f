package nuclear

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"ingestengine/internal/cascade"
	"ingestengine/internal/contentstore"
	"ingestengine/internal/domain/entity"
	"ingestengine/internal/infra/notifier"
	"ingestengine/internal/observability/metrics"
	"ingestengine/internal/searchfallback"
)

const defaultBatchSize = 20

// IDGenerator produces a unique id for a new Nuclear Failure row.
type IDGenerator func() string

// Scheduler periodically rescans due Nuclear Failures and retries each
// with three escalating tactics, in order: direct re-processing through
// the cascade, search-fallback re-processing, and URL-variation retries.
// Grounded on the teacher's cron-driven worker bootstrap
// (cmd/worker/main.go's startCronWorker), generalized from a single daily
// crawl job to a periodic nuclear-failure rescan.
type Scheduler struct {
	store    *Store
	engine   *cascade.Engine
	search   *searchfallback.Service
	content  *contentstore.Store
	notifier notifier.Notifier
	newID    IDGenerator
	batchSize int

	cron *cron.Cron
}

// NewScheduler wires a rescan loop. notify may be a *notifier.NoOpNotifier
// when escalation alerts are disabled; it is never nil.
func NewScheduler(store *Store, engine *cascade.Engine, search *searchfallback.Service, content *contentstore.Store, notify notifier.Notifier, newID IDGenerator) *Scheduler {
	return &Scheduler{store: store, engine: engine, search: search, content: content, notifier: notify, newID: newID, batchSize: defaultBatchSize}
}

// Start registers the rescan tick on the given cron schedule (standard
// 5-field cron expression) and begins running it.
func (s *Scheduler) Start(schedule string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, func() {
		s.Tick(context.Background())
	}); err != nil {
		return fmt.Errorf("nuclear: schedule tick: %w", err)
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Tick runs one rescan pass over every due pending record.
func (s *Scheduler) Tick(ctx context.Context) {
	due, err := s.store.DuePending(ctx, s.batchSize)
	if err != nil {
		slog.Error("nuclear tick: listing due records failed", slog.Any("error", err))
		return
	}
	metrics.NuclearPendingGauge.Set(float64(len(due)))
	for _, f := range due {
		s.retryOne(ctx, f)
	}
}

// retryOne drives the three tactics in order against a single record,
// stopping at the first that resolves a URL.
func (s *Scheduler) retryOne(ctx context.Context, f entity.NuclearFailure) {
	if err := s.store.MarkInProgress(ctx, f.ID); err != nil {
		slog.Error("nuclear: mark in-progress failed", slog.String("id", f.ID), slog.Any("error", err))
		return
	}

	resolvedURL, latestErr := s.directReprocess(ctx, f)
	if resolvedURL == "" && latestErr != nil {
		resolvedURL, latestErr = s.searchReprocess(ctx, f)
	}
	if resolvedURL == "" && latestErr != nil {
		resolvedURL, latestErr = s.urlVariationReprocess(ctx, f)
	}

	if resolvedURL != "" {
		metrics.NuclearRetryRunsTotal.WithLabelValues("recovered").Inc()
		if err := s.store.MarkSuccess(ctx, f.ID, resolvedURL); err != nil {
			slog.Error("nuclear: mark success failed", slog.String("id", f.ID), slog.Any("error", err))
		}
		return
	}

	msg := "all retry tactics exhausted"
	if latestErr != nil {
		msg = latestErr.Error()
	}
	outcome := "rescheduled"
	if f.RetryCount+1 >= s.store.humanInterventionThreshold {
		outcome = "escalated"
	}
	metrics.NuclearRetryRunsTotal.WithLabelValues(outcome).Inc()
	if err := s.store.ScheduleNextRetry(ctx, f.ID, f.RetryCount, msg); err != nil {
		slog.Error("nuclear: schedule next retry failed", slog.String("id", f.ID), slog.Any("error", err))
		return
	}
	if outcome == "escalated" {
		f.RetryCount++
		f.LatestError = msg
		f.RetryStatus = entity.RetryHumanInterventionRequired
		if err := s.notifier.NotifyEscalation(ctx, &f); err != nil {
			slog.Error("nuclear: escalation notification failed", slog.String("id", f.ID), slog.Any("error", err))
		}
	}
}

// directReprocess retries the original URL through the cascade, exactly
// as the first pass through the engine would have.
func (s *Scheduler) directReprocess(ctx context.Context, f entity.NuclearFailure) (string, error) {
	result := s.engine.Fetch(ctx, f.OriginalURL, nil)
	if !result.Success {
		return "", fmt.Errorf("direct reprocess: %s", result.Error)
	}
	if err := s.content.Upsert(ctx, entity.ContentRecord{
		URL: f.OriginalURL, Title: result.Title, Content: result.Content, ContentType: entity.ContentTypeArticle,
	}); err != nil {
		slog.Warn("nuclear: storing direct reprocess result failed", slog.String("url", f.OriginalURL), slog.Any("error", err))
	}
	return f.OriginalURL, nil
}

// searchReprocess asks the search fallback for an alternative URL, using
// the record's title as the query.
func (s *Scheduler) searchReprocess(ctx context.Context, f entity.NuclearFailure) (string, error) {
	query := f.Title
	if query == "" {
		query = f.OriginalURL
	}
	altURL, found, err := s.search.Search(ctx, query, entity.SearchUrgent)
	if err != nil {
		return "", fmt.Errorf("search reprocess: %w", err)
	}
	if !found || altURL == "" {
		return "", fmt.Errorf("search reprocess: no alternative found")
	}
	result := s.engine.Fetch(ctx, altURL, nil)
	if !result.Success {
		return "", fmt.Errorf("search reprocess: fetch of alternative failed: %s", result.Error)
	}
	if err := s.content.Upsert(ctx, entity.ContentRecord{
		URL: altURL, Title: result.Title, Content: result.Content, ContentType: entity.ContentTypeArticle,
	}); err != nil {
		slog.Warn("nuclear: storing search reprocess result failed", slog.String("url", altURL), slog.Any("error", err))
	}
	return altURL, nil
}

// urlVariationReprocess tries a handful of common URL-normalization
// variants (protocol swap, trailing slash, AMP stripping, www toggle)
// before giving up on this tick.
func (s *Scheduler) urlVariationReprocess(ctx context.Context, f entity.NuclearFailure) (string, error) {
	for _, candidate := range urlVariations(f.OriginalURL) {
		result := s.engine.Fetch(ctx, candidate, nil)
		if !result.Success {
			continue
		}
		if err := s.content.Upsert(ctx, entity.ContentRecord{
			URL: candidate, Title: result.Title, Content: result.Content, ContentType: entity.ContentTypeArticle,
		}); err != nil {
			slog.Warn("nuclear: storing variation reprocess result failed", slog.String("url", candidate), slog.Any("error", err))
		}
		return candidate, nil
	}
	return "", fmt.Errorf("url variation reprocess: no variant succeeded")
}

// urlVariations produces candidate rewrites of rawURL worth a retry: an
// https<->http swap, a www. toggle, a trailing-slash toggle, and stripping
// an "amp/" path segment.
func urlVariations(rawURL string) []string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	var variants []string
	add := func(u *url.URL) {
		s := u.String()
		if s != rawURL {
			variants = append(variants, s)
		}
	}

	if parsed.Scheme == "http" {
		swapped := *parsed
		swapped.Scheme = "https"
		add(&swapped)
	} else if parsed.Scheme == "https" {
		swapped := *parsed
		swapped.Scheme = "http"
		add(&swapped)
	}

	if strings.HasPrefix(parsed.Host, "www.") {
		stripped := *parsed
		stripped.Host = strings.TrimPrefix(parsed.Host, "www.")
		add(&stripped)
	} else {
		prefixed := *parsed
		prefixed.Host = "www." + parsed.Host
		add(&prefixed)
	}

	if strings.HasSuffix(parsed.Path, "/") {
		trimmed := *parsed
		trimmed.Path = strings.TrimSuffix(parsed.Path, "/")
		add(&trimmed)
	} else {
		slashed := *parsed
		slashed.Path = parsed.Path + "/"
		add(&slashed)
	}

	if strings.Contains(parsed.Path, "/amp/") || strings.HasSuffix(parsed.Path, "/amp") {
		deamped := *parsed
		deamped.Path = strings.TrimSuffix(strings.Replace(parsed.Path, "/amp/", "/", 1), "/amp")
		add(&deamped)
	}

	return variants
}
