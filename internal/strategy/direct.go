package strategy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/httpclient"
)

const defaultDesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DirectFetch is a plain HTTP GET with a desktop user agent, following
// redirects, rejecting non-2xx responses.
type DirectFetch struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBytes  int64
}

// NewDirectFetch builds the direct strategy. denyPrivateIPs should stay
// true in production; userAgent defaults to a desktop Chrome string.
func NewDirectFetch(userAgent string, timeout time.Duration, maxBytes int64, denyPrivateIPs bool) *DirectFetch {
	if userAgent == "" {
		userAgent = defaultDesktopUA
	}
	return &DirectFetch{
		client: httpclient.NewSafeClient(httpclient.Options{
			Timeout: timeout, MaxRedirects: 10, DenyPrivateIPs: denyPrivateIPs,
		}),
		userAgent: userAgent,
		timeout:   timeout,
		maxBytes:  maxBytes,
	}
}

func (d *DirectFetch) Meta() entity.StrategyMeta {
	return entity.StrategyMeta{
		Name:            "direct",
		Priority:        entity.PriorityHighest,
		Capabilities:    map[entity.Capability]bool{entity.CapabilityBasicFetch: true},
		BaseSuccessRate: 0.6,
		AvgResponseTime: 1.5,
	}
}

func (d *DirectFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(d.Meta(), rawURL)
}

func (d *DirectFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	if err := httpclient.ValidateURL(rawURL, true); err != nil {
		return entity.Failure(rawURL, "direct", err)
	}

	body, _, status, err := httpclient.Get(ctx, d.client, d.timeout, rawURL, d.userAgent, d.maxBytes)
	if err != nil {
		return entity.Failure(rawURL, "direct", err)
	}
	if status < 200 || status >= 300 {
		return entity.Failure(rawURL, "direct", fmt.Errorf("http status %d", status))
	}

	return entity.Ok(rawURL, "direct", "", string(body))
}
