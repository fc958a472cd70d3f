package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/httpclient"
)

const waybackAvailabilityAPI = "https://archive.org/wayback/available"

type waybackResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

func queryWayback(ctx context.Context, client *http.Client, timeout time.Duration, rawURL, timestamp string) (*waybackResponse, error) {
	q := url.Values{"url": {rawURL}}
	if timestamp != "" {
		q.Set("timestamp", timestamp)
	}
	apiURL := waybackAvailabilityAPI + "?" + q.Encode()

	body, _, status, err := httpclient.Get(ctx, client, timeout, apiURL, defaultDesktopUA, 1<<20)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("wayback api status %d", status)
	}
	var parsed waybackResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("wayback api decode: %w", err)
	}
	return &parsed, nil
}

// WebArchiveLatestFetch queries the Wayback availability API for the
// closest snapshot to now and fetches it.
type WebArchiveLatestFetch struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

func NewWebArchiveLatestFetch(timeout time.Duration, maxBytes int64) *WebArchiveLatestFetch {
	return &WebArchiveLatestFetch{
		client:   httpclient.NewSafeClient(httpclient.Options{Timeout: timeout, MaxRedirects: 5, DenyPrivateIPs: true}),
		timeout:  timeout,
		maxBytes: maxBytes,
	}
}

func (w *WebArchiveLatestFetch) Meta() entity.StrategyMeta {
	return entity.StrategyMeta{
		Name:            "web_archive_latest",
		Priority:        entity.PriorityLow,
		Capabilities:    map[entity.Capability]bool{entity.CapabilityArchive: true},
		BaseSuccessRate: 0.35,
		AvgResponseTime: 3,
	}
}

func (w *WebArchiveLatestFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(w.Meta(), rawURL)
}

func (w *WebArchiveLatestFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	resp, err := queryWayback(ctx, w.client, w.timeout, rawURL, "")
	if err != nil {
		return entity.Failure(rawURL, "web_archive_latest", err)
	}
	if !resp.ArchivedSnapshots.Closest.Available {
		return entity.Failure(rawURL, "web_archive_latest", fmt.Errorf("no snapshot available"))
	}

	body, _, status, err := httpclient.Get(ctx, w.client, w.timeout, resp.ArchivedSnapshots.Closest.URL, defaultDesktopUA, w.maxBytes)
	if err != nil {
		return entity.Failure(rawURL, "web_archive_latest", err)
	}
	if status < 200 || status >= 300 {
		return entity.Failure(rawURL, "web_archive_latest", fmt.Errorf("snapshot status %d", status))
	}

	content, title, _, err := extractReadable(body, resp.ArchivedSnapshots.Closest.URL)
	if err != nil {
		return entity.Failure(rawURL, "web_archive_latest", err)
	}
	return entity.Ok(rawURL, "web_archive_latest", title, content)
}

// WebArchiveMultiTimeframeFetch iterates a list of target timestamps
// ranging from the present back roughly 15 years, accepting the first
// response whose body exceeds 1000 bytes.
type WebArchiveMultiTimeframeFetch struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	timeframes []string
}

// NewWebArchiveMultiTimeframeFetch builds the strategy from a list of
// Wayback timestamp prefixes (YYYYMMDD), oldest or newest first as
// configured.
func NewWebArchiveMultiTimeframeFetch(timeframes []string, timeout time.Duration, maxBytes int64) *WebArchiveMultiTimeframeFetch {
	return &WebArchiveMultiTimeframeFetch{
		client:     httpclient.NewSafeClient(httpclient.Options{Timeout: timeout, MaxRedirects: 5, DenyPrivateIPs: true}),
		timeout:    timeout,
		maxBytes:   maxBytes,
		timeframes: timeframes,
	}
}

func (w *WebArchiveMultiTimeframeFetch) Meta() entity.StrategyMeta {
	return entity.StrategyMeta{
		Name:            "web_archive_multi_timeframe",
		Priority:        entity.PriorityFallback,
		Capabilities:    map[entity.Capability]bool{entity.CapabilityArchive: true},
		BaseSuccessRate: 0.25,
		AvgResponseTime: 10,
	}
}

func (w *WebArchiveMultiTimeframeFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(w.Meta(), rawURL) && len(w.timeframes) > 0
}

func (w *WebArchiveMultiTimeframeFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	var lastErr error
	for _, ts := range w.timeframes {
		resp, err := queryWayback(ctx, w.client, w.timeout, rawURL, ts)
		if err != nil {
			lastErr = err
			continue
		}
		if !resp.ArchivedSnapshots.Closest.Available {
			lastErr = fmt.Errorf("no snapshot available near %s", ts)
			continue
		}
		body, _, status, err := httpclient.Get(ctx, w.client, w.timeout, resp.ArchivedSnapshots.Closest.URL, defaultDesktopUA, w.maxBytes)
		if err != nil || status < 200 || status >= 300 || len(body) <= 1000 {
			lastErr = fmt.Errorf("snapshot near %s rejected", ts)
			continue
		}
		content, title, _, extractErr := extractReadable(body, resp.ArchivedSnapshots.Closest.URL)
		if extractErr != nil {
			lastErr = extractErr
			continue
		}
		return entity.Ok(rawURL, "web_archive_multi_timeframe", title, content)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no timeframes configured")
	}
	return entity.Failure(rawURL, "web_archive_multi_timeframe", lastErr)
}
