package strategy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/httpclient"
)

// ArchiveMirrorFetch iterates a list of archive-host mirror domains
// (archive.today-style "submit and fetch" services), looking up an
// existing snapshot first and submitting the URL for capture only on the
// first mirror attempted.
type ArchiveMirrorFetch struct {
	mirrors   []string
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

// NewArchiveMirrorFetch builds the archive-mirror strategy. mirrors is a
// list of bare hostnames, e.g. "archive.today", "archive.ph".
func NewArchiveMirrorFetch(mirrors []string, timeout time.Duration, maxBytes int64) *ArchiveMirrorFetch {
	return &ArchiveMirrorFetch{
		mirrors:   mirrors,
		client:    httpclient.NewSafeClient(httpclient.Options{Timeout: timeout, MaxRedirects: 5, DenyPrivateIPs: true}),
		timeout:   timeout,
		maxBytes:  maxBytes,
		userAgent: defaultDesktopUA,
	}
}

func (a *ArchiveMirrorFetch) Meta() entity.StrategyMeta {
	return entity.StrategyMeta{
		Name:            "archive_mirror",
		Priority:        entity.PriorityLow,
		Capabilities:    map[entity.Capability]bool{entity.CapabilityArchive: true},
		BaseSuccessRate: 0.3,
		AvgResponseTime: 8,
	}
}

func (a *ArchiveMirrorFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(a.Meta(), rawURL) && len(a.mirrors) > 0
}

func (a *ArchiveMirrorFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	var lastErr error
	for i, mirror := range a.mirrors {
		select {
		case <-ctx.Done():
			return entity.Failure(rawURL, "archive_mirror", ctx.Err())
		case <-time.After(randomDelay(1*time.Second, 3*time.Second)):
		}

		lookupURL := fmt.Sprintf("https://%s/newest/%s", mirror, rawURL)
		body, finalURL, status, err := httpclient.Get(ctx, a.client, a.timeout, lookupURL, a.userAgent, a.maxBytes)

		if status == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("mirror %s rate-limited", mirror)
			continue
		}
		if err == nil && status >= 200 && status < 300 && onMirror(finalURL, mirror) {
			return entity.Ok(rawURL, "archive_mirror", "", string(body))
		}
		lastErr = err
		if lastErr == nil {
			lastErr = fmt.Errorf("mirror %s had no existing snapshot (status %d)", mirror, status)
		}

		if i == 0 {
			submitURL := fmt.Sprintf("https://%s/submit/?url=%s", mirror, url.QueryEscape(rawURL))
			_ = a.submit(ctx, submitURL)

			select {
			case <-ctx.Done():
				return entity.Failure(rawURL, "archive_mirror", ctx.Err())
			case <-time.After(5 * time.Second):
			}

			retryBody, retryFinal, retryStatus, retryErr := httpclient.Get(ctx, a.client, a.timeout, lookupURL, a.userAgent, a.maxBytes)
			if retryErr == nil && retryStatus >= 200 && retryStatus < 300 && onMirror(retryFinal, mirror) {
				return entity.Ok(rawURL, "archive_mirror", "", string(retryBody))
			}
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no archive mirrors configured")
	}
	return entity.Failure(rawURL, "archive_mirror", lastErr)
}

func (a *ArchiveMirrorFetch) submit(ctx context.Context, submitURL string) error {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, submitURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", a.userAgent)
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func onMirror(finalURL, mirror string) bool {
	u, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Host, mirror)
}
