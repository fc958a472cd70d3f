// Package worker implements the Worker Pool (spec §4.11): a group of
// goroutines that continuously dequeue URL Jobs, drive the Strategy
// Cascade Engine, fall back to search, and escalate persistent failures
// to the Nuclear Retry Store. Grounded on the teacher's cmd/worker/main.go
// bootstrap shape (health server, graceful shutdown), generalized from a
// single daily cron crawl to a continuously-polling pool.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ingestengine/internal/cascade"
	"ingestengine/internal/contentstore"
	"ingestengine/internal/domain/entity"
	"ingestengine/internal/jobqueue"
	"ingestengine/internal/nuclear"
	"ingestengine/internal/observability/metrics"
	"ingestengine/internal/searchfallback"
)

const (
	emptyPollShortSleep = 2 * time.Second
	emptyPollLongSleep  = 10 * time.Second
	consecutiveEmptyPollsBeforeBackoff = 3
	defaultClipSize      = 20000
	defaultFollowupBoost = 10
)

// IDGenerator produces unique ids for jobs and nuclear failure records.
type IDGenerator func() string

// Config tunes the worker pool.
type Config struct {
	PoolSize  int
	ClipSize  int
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.ClipSize <= 0 {
		c.ClipSize = defaultClipSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// Pool is a bounded group of workers that drain the job queue.
type Pool struct {
	cfg     Config
	queue   *jobqueue.Queue
	content *contentstore.Store
	engine  *cascade.Engine
	search  *searchfallback.Service
	nuke    *nuclear.Store
	newID   IDGenerator
}

func NewPool(cfg Config, queue *jobqueue.Queue, content *contentstore.Store, engine *cascade.Engine, search *searchfallback.Service, nuke *nuclear.Store, newID IDGenerator) *Pool {
	return &Pool{cfg: cfg.withDefaults(), queue: queue, content: content, engine: engine, search: search, nuke: nuke, newID: newID}
}

// Run starts PoolSize workers and blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.PoolSize; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(ctx, workerID)
		}()
	}
	wg.Wait()
}

// runWorker is one worker's poll/process loop (spec §4.11's polling
// backoff: 2s on an empty poll, 10s after 3 consecutive empty polls,
// resetting on any dequeue).
func (p *Pool) runWorker(ctx context.Context, workerID string) {
	consecutiveEmpty := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, data, err := p.queue.Dequeue(ctx, workerID)
		if err != nil {
			slog.Error("worker dequeue failed", slog.String("worker", workerID), slog.Any("error", err))
			sleep(ctx, emptyPollShortSleep)
			continue
		}
		if job == nil {
			consecutiveEmpty++
			wait := emptyPollShortSleep
			if consecutiveEmpty >= consecutiveEmptyPollsBeforeBackoff {
				wait = emptyPollLongSleep
			}
			sleep(ctx, wait)
			continue
		}

		consecutiveEmpty = 0
		p.process(ctx, job, data)
	}
}

// process runs the four-step pipeline from spec §4.11 against one job.
func (p *Pool) process(ctx context.Context, job *entity.Job, data map[string]any) {
	start := time.Now()
	defer func() { metrics.WorkerJobDuration.Observe(time.Since(start).Seconds()) }()

	fingerprint := contentstore.Fingerprint(job.URL)
	existing, err := p.content.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		slog.Error("worker: duplicate lookup failed", slog.String("job", job.ID), slog.Any("error", err))
	} else if existing != nil {
		metrics.WorkerJobsTotal.WithLabelValues("duplicate").Inc()
		_ = p.queue.MarkCompleted(ctx, job.ID, map[string]any{"duplicate": true, "url": existing.URL})
		return
	}

	var preferred []string
	if raw, ok := data["preferred_strategies"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				preferred = append(preferred, s)
			}
		}
	}

	result := p.engine.Fetch(ctx, job.URL, preferred)
	if result.Success {
		clipped := clip(result.Content, p.cfg.ClipSize)
		if err := p.content.Upsert(ctx, entity.ContentRecord{
			URL: job.URL, Title: result.Title, Content: clipped, ContentType: entity.ContentTypeArticle,
		}); err != nil {
			slog.Error("worker: storing content failed", slog.String("job", job.ID), slog.Any("error", err))
		}
		metrics.WorkerJobsTotal.WithLabelValues("completed").Inc()
		_ = p.queue.MarkCompleted(ctx, job.ID, map[string]any{
			"length":     len(clipped),
			"word_count": wordCount(clipped),
		})
		return
	}

	source := ""
	if v, ok := data["source"].(string); ok {
		source = v
	}

	altURL, found, searchErr := p.search.Search(ctx, titleOrURL(job, data), entity.SearchUrgent)
	if searchErr == nil && found && altURL != "" {
		followupID := p.newID()
		if err := p.queue.Enqueue(ctx, followupID, "ingest", job.Priority+defaultFollowupBoost, map[string]any{
			"url": altURL, "source": source, "submitted_at": time.Now().UTC(),
		}); err != nil {
			slog.Error("worker: enqueueing fallback job failed", slog.String("job", job.ID), slog.Any("error", err))
		}
		metrics.WorkerJobsTotal.WithLabelValues("fallback_triggered").Inc()
		_ = p.queue.MarkCompleted(ctx, job.ID, map[string]any{"fallback_triggered": true, "alternative_url": altURL})
		return
	}

	if job.RetryCount+1 >= p.cfg.MaxRetries {
		if p.nuke != nil {
			if err := p.nuke.Record(ctx, p.newID(), entity.FailureURLProcessing, job.URL, titleOrURL(job, data), result.Error); err != nil {
				slog.Error("worker: recording nuclear failure failed", slog.String("job", job.ID), slog.Any("error", err))
			}
		}
		metrics.WorkerJobsTotal.WithLabelValues("failed").Inc()
		_ = p.queue.MarkFailed(ctx, job.ID, result.Error)
		return
	}

	metrics.WorkerJobsTotal.WithLabelValues("requeued").Inc()
	if err := p.queue.RequeuePending(ctx, job.ID); err != nil {
		slog.Error("worker: requeue failed", slog.String("job", job.ID), slog.Any("error", err))
	}
}

func titleOrURL(job *entity.Job, data map[string]any) string {
	if title, ok := data["title"].(string); ok && title != "" {
		return title
	}
	return job.URL
}

func clip(content string, max int) string {
	if len(content) <= max {
		return content
	}
	return content[:max]
}

func wordCount(content string) int {
	return len(strings.Fields(content))
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
