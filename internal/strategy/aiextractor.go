package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/httpclient"
)

const firecrawlEndpoint = "https://api.firecrawl.dev/v0/scrape"

// UsageCounter persists a strict per-month call ceiling on disk, shared by
// every instance of AIExtractorFetch in a process. It increments on every
// call attempt, success or failure, per spec.
type UsageCounter struct {
	path string
	mu   sync.Mutex
}

type usageRecord struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

func NewUsageCounter(path string) *UsageCounter {
	return &UsageCounter{path: path}
}

// IncrementAndCheck increments the counter for the current month and
// reports whether the call is still within limit (checked before the
// caller proceeds; the increment always happens).
func (u *UsageCounter) IncrementAndCheck(limit int) (withinLimit bool, used int, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	month := time.Now().UTC().Format("2006-01")
	rec := u.load()
	if rec.Month != month {
		rec = usageRecord{Month: month, Count: 0}
	}
	rec.Count++
	if err := u.save(rec); err != nil {
		return false, rec.Count, err
	}
	return rec.Count <= limit, rec.Count, nil
}

func (u *UsageCounter) load() usageRecord {
	data, err := os.ReadFile(u.path)
	if err != nil {
		return usageRecord{}
	}
	var rec usageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return usageRecord{}
	}
	return rec
}

func (u *UsageCounter) save(rec usageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(u.path, data, 0o644)
}

type firecrawlRequest struct {
	URL         string   `json:"url"`
	Formats     []string `json:"formats"`
	IncludeTags []string `json:"includeTags,omitempty"`
	ExcludeTags []string `json:"excludeTags,omitempty"`
	WaitFor     int      `json:"waitFor,omitempty"`
	Timeout     int      `json:"timeout,omitempty"`
}

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string                 `json:"markdown"`
		HTML     string                 `json:"html"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"data"`
}

// AIExtractorFetch posts a URL to the Firecrawl scrape API, subject to a
// strict monthly usage ceiling. Disabled by default (see config.Config);
// when the ceiling is reached the strategy reports usage-exhausted rather
// than a failure, and the cascade skips it without penalizing its stats.
type AIExtractorFetch struct {
	apiKey  string
	client  *http.Client
	timeout time.Duration
	counter *UsageCounter
	limit   int
	enabled bool
}

func NewAIExtractorFetch(apiKey string, timeout time.Duration, counter *UsageCounter, monthlyLimit int, enabled bool) *AIExtractorFetch {
	return &AIExtractorFetch{
		apiKey:  apiKey,
		client:  httpclient.NewSafeClient(httpclient.Options{Timeout: timeout, MaxRedirects: 3, DenyPrivateIPs: true}),
		timeout: timeout,
		counter: counter,
		limit:   monthlyLimit,
		enabled: enabled,
	}
}

func (a *AIExtractorFetch) Meta() entity.StrategyMeta {
	remaining := a.limit
	return entity.StrategyMeta{
		Name:            "ai_extractor",
		Priority:        entity.PriorityFallback,
		Capabilities:    map[entity.Capability]bool{entity.CapabilityAIExtract: true},
		BaseSuccessRate: 0.7,
		AvgResponseTime: 6,
		HasUsageLimits:  true,
		RemainingUsage:  &remaining,
	}
}

func (a *AIExtractorFetch) CanHandle(rawURL string) bool {
	return a.enabled && a.limit > 0 && DefaultCanHandle(a.Meta(), rawURL)
}

// ErrUsageExhausted is reported instead of a generic failure so the
// cascade can skip the strategy without recording it as a miss.
var ErrUsageExhausted = fmt.Errorf("ai extractor monthly usage ceiling reached")

func (a *AIExtractorFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	if !a.enabled {
		return entity.Failure(rawURL, "ai_extractor", ErrUsageExhausted)
	}

	withinLimit, _, err := a.counter.IncrementAndCheck(a.limit)
	if err != nil {
		return entity.Failure(rawURL, "ai_extractor", err)
	}
	if !withinLimit {
		return entity.Failure(rawURL, "ai_extractor", ErrUsageExhausted)
	}

	payload := firecrawlRequest{
		URL:     rawURL,
		Formats: []string{"markdown", "html"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return entity.Failure(rawURL, "ai_extractor", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, firecrawlEndpoint, bytes.NewReader(body))
	if err != nil {
		return entity.Failure(rawURL, "ai_extractor", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return entity.Failure(rawURL, "ai_extractor", err)
	}
	defer resp.Body.Close()

	respBody, err := httpclient.ReadLimited(resp.Body, 10<<20)
	if err != nil {
		return entity.Failure(rawURL, "ai_extractor", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return entity.Failure(rawURL, "ai_extractor", fmt.Errorf("firecrawl status %d", resp.StatusCode))
	}

	var parsed firecrawlResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return entity.Failure(rawURL, "ai_extractor", fmt.Errorf("firecrawl decode: %w", err))
	}
	if !parsed.Success {
		return entity.Failure(rawURL, "ai_extractor", fmt.Errorf("firecrawl reported failure"))
	}

	title := ""
	if t, ok := parsed.Data.Metadata["title"].(string); ok {
		title = t
	}
	content := parsed.Data.Markdown
	if content == "" {
		content = parsed.Data.HTML
	}

	result := entity.Ok(rawURL, "ai_extractor", title, content)
	result.Metadata = parsed.Data.Metadata
	return result
}
