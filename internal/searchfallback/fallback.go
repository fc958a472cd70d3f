// Package searchfallback implements the external search fallback: when
// the cascade exhausts every fetch strategy, this looks up an alternative
// URL via a configured search API. Grounded on spec §4.9 and wired
// through the same registry (breaker + retry) and rate limiter every
// other external call in this engine uses.
package searchfallback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/errorkind"
	"ingestengine/internal/httpclient"
	"ingestengine/internal/observability/metrics"
	ratelimit "ingestengine/internal/ratelimit"
	"ingestengine/internal/resilience/registry"
	"ingestengine/internal/searchqueue"
)

const searchEndpoint = "https://www.googleapis.com/customsearch/v1"

type googleSearchResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
}

// IDGenerator produces a unique id for a new Search Request row.
type IDGenerator func() string

// Service is the Search Fallback Service.
type Service struct {
	apiKey, cx string
	client     *http.Client
	queue      *searchqueue.Queue
	registry   *registry.Registry
	limiter    *ratelimit.SearchQuotaLimiter
	newID      IDGenerator
	maxRetries int

	mu        sync.Mutex
	processorRunning bool
}

func New(apiKey, cx string, queue *searchqueue.Queue, reg *registry.Registry, limiter *ratelimit.SearchQuotaLimiter, newID IDGenerator, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Service{
		apiKey:     apiKey,
		cx:         cx,
		client:     httpclient.NewSafeClient(httpclient.Options{Timeout: 15 * time.Second, MaxRedirects: 3, DenyPrivateIPs: true}),
		queue:      queue,
		registry:   reg,
		limiter:    limiter,
		newID:      newID,
		maxRetries: maxRetries,
	}
}

// Search implements spec §4.9's search(query, priority) -> Option<URL>.
func (s *Service) Search(ctx context.Context, query string, priority entity.SearchPriority) (string, bool, error) {
	if cached, ok, err := s.queue.CompletedResultFor(ctx, query); err == nil && ok {
		metrics.SearchFallbackTotal.WithLabelValues("found").Inc()
		return cached, true, nil
	}

	if priority == entity.SearchUrgent {
		url, err := s.callAPI(ctx, query)
		if err == nil {
			if url != "" {
				metrics.SearchFallbackTotal.WithLabelValues("found").Inc()
			} else {
				metrics.SearchFallbackTotal.WithLabelValues("not_found").Inc()
			}
			return url, url != "", nil
		}
		if errorkind.KindOf(err) == errorkind.RateLimited {
			metrics.SearchFallbackTotal.WithLabelValues("quota_exhausted").Inc()
		}
		slog.Warn("urgent inline search failed, falling back to queue", slog.String("query", query), slog.Any("error", err))
	}

	id := s.newID()
	if err := s.queue.Enqueue(ctx, id, query, priority, s.maxRetries, nil); err != nil {
		return "", false, fmt.Errorf("search: enqueue: %w", err)
	}
	metrics.SearchFallbackTotal.WithLabelValues("queued").Inc()
	s.ensureProcessorRunning(context.Background())
	return "", false, nil
}

// ensureProcessorRunning starts the background processor loop exactly
// once per process lifetime.
func (s *Service) ensureProcessorRunning(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processorRunning {
		return
	}
	s.processorRunning = true
	go s.runProcessor(ctx)
}

// runProcessor drains the queue in priority order, retrying each request
// up to its max_attempts with `min(300, 2^attempts)` seconds between
// failed attempts, until the queue is empty, then exits — Search re-arms
// it on the next enqueue.
func (s *Service) runProcessor(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.processorRunning = false
		s.mu.Unlock()
	}()

	for {
		req, err := s.queue.Dequeue(ctx)
		if err != nil {
			slog.Error("search processor dequeue failed", slog.Any("error", err))
			time.Sleep(30 * time.Second)
			continue
		}
		if req == nil {
			return
		}
		s.process(ctx, req)
	}
}

func (s *Service) process(ctx context.Context, req *entity.SearchRequest) {
	link, err := s.callAPI(ctx, req.Query)
	if err == nil {
		if link == "" {
			_ = s.queue.MarkFailed(ctx, req.ID, "no results", true)
			_ = s.queue.RecordStats(ctx, false, 1)
			metrics.SearchFallbackTotal.WithLabelValues("not_found").Inc()
			return
		}
		_ = s.queue.MarkCompleted(ctx, req.ID, link)
		_ = s.queue.RecordStats(ctx, true, 1)
		metrics.SearchFallbackTotal.WithLabelValues("found").Inc()
		return
	}

	if errorkind.KindOf(err) == errorkind.RateLimited {
		_ = s.queue.MarkRateLimited(ctx, req.ID)
		metrics.SearchFallbackTotal.WithLabelValues("quota_exhausted").Inc()
		time.Sleep(60 * time.Second)
		return
	}

	_ = s.queue.MarkFailed(ctx, req.ID, err.Error(), true)
	_ = s.queue.RecordStats(ctx, false, 1)
	req.Attempts++
	if req.Attempts >= req.MaxAttempts {
		return
	}

	backoff := time.Duration(math.Min(300, math.Pow(2, float64(req.Attempts)))) * time.Second
	time.Sleep(backoff)
	s.process(ctx, req)
}

// callAPI runs the Google Custom Search call under the search-ops breaker,
// observing the daily/hourly rate budget first.
func (s *Service) callAPI(ctx context.Context, query string) (string, error) {
	if err := s.limiter.WaitIfNeeded(ctx); err != nil {
		return "", err
	}
	allowed, err := s.limiter.AllowBurst(ctx)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", errorkind.Wrap(errorkind.RateLimited, fmt.Errorf("hourly search burst cap reached"))
	}

	var link string
	err = s.registry.Execute(ctx, registry.SearchOps, func(ctx context.Context) error {
		l, callErr := s.doCall(ctx, query)
		link = l
		return callErr
	})
	return link, err
}

func (s *Service) doCall(ctx context.Context, query string) (string, error) {
	return s.doCallAt(ctx, searchEndpoint, query)
}

// doCallAt is doCall with the endpoint broken out for testing.
func (s *Service) doCallAt(ctx context.Context, endpoint, query string) (string, error) {
	q := url.Values{
		"key": {s.apiKey},
		"cx":  {s.cx},
		"q":   {query},
		"num": {"1"},
	}
	apiURL := endpoint + "?" + q.Encode()

	body, _, status, err := httpclient.Get(ctx, s.client, 15*time.Second, apiURL, "", 1<<20)
	if err != nil {
		return "", errorkind.Wrap(errorkind.TransientNetwork, err)
	}
	if status == http.StatusTooManyRequests {
		return "", errorkind.Wrap(errorkind.RateLimited, fmt.Errorf("search api rate limited"))
	}
	if status < 200 || status >= 300 {
		return "", errorkind.Wrap(errorkind.HTTPStatus, fmt.Errorf("search api status %d", status))
	}

	var parsed googleSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errorkind.Wrap(errorkind.Unknown, fmt.Errorf("search api decode: %w", err))
	}
	if len(parsed.Items) == 0 {
		return "", nil
	}
	return parsed.Items[0].Link, nil
}
