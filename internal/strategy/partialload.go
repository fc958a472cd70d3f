package strategy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/httpclient"
)

// PartialLoadFetch uses an aggressive short timeout and a small byte cap,
// then runs readability on the body it received. A request that times out,
// or a body larger than the cap, is reported as a failure; no partially
// received body is kept.
type PartialLoadFetch struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

// NewPartialLoadFetch builds the partial-load strategy. Per spec the
// timeout must be <= 3s and the byte cap <= 100kB.
func NewPartialLoadFetch() *PartialLoadFetch {
	timeout := 3 * time.Second
	maxBytes := int64(100 * 1024)
	return &PartialLoadFetch{
		client:   httpclient.NewSafeClient(httpclient.Options{Timeout: timeout, MaxRedirects: 5, DenyPrivateIPs: true}),
		timeout:  timeout,
		maxBytes: maxBytes,
	}
}

func (p *PartialLoadFetch) Meta() entity.StrategyMeta {
	return entity.StrategyMeta{
		Name:            "partial_load",
		Priority:        entity.PriorityLow,
		Capabilities:    map[entity.Capability]bool{entity.CapabilityBasicFetch: true},
		BaseSuccessRate: 0.3,
		AvgResponseTime: 3,
	}
}

func (p *PartialLoadFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(p.Meta(), rawURL)
}

func (p *PartialLoadFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	if err := httpclient.ValidateURL(rawURL, true); err != nil {
		return entity.Failure(rawURL, "partial_load", err)
	}

	body, finalURL, _, err := httpclient.Get(ctx, p.client, p.timeout, rawURL, defaultDesktopUA, p.maxBytes)
	if err != nil && len(body) == 0 {
		return entity.Failure(rawURL, "partial_load", err)
	}
	if !errors.Is(err, httpclient.ErrTimeout) && err != nil && len(body) == 0 {
		return entity.Failure(rawURL, "partial_load", err)
	}

	content, title, _, extractErr := extractReadable(body, finalURL)
	if extractErr != nil {
		return entity.Failure(rawURL, "partial_load", extractErr)
	}
	return entity.Ok(rawURL, "partial_load", title, content)
}
