package strategy

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/httpclient"
)

// BypassProxyFetch iterates a list of paywall-bypass proxy URL templates
// (each containing a "{url}" placeholder), accepting the first response
// over 1000 bytes. A 2-5s randomized delay precedes every attempt.
type BypassProxyFetch struct {
	templates []string
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

// NewBypassProxyFetch builds the bypass-proxy strategy from a list of
// format strings such as "https://proxy.example/render?url={url}".
func NewBypassProxyFetch(templates []string, timeout time.Duration, maxBytes int64) *BypassProxyFetch {
	return &BypassProxyFetch{
		templates: templates,
		client:    httpclient.NewSafeClient(httpclient.Options{Timeout: timeout, MaxRedirects: 5, DenyPrivateIPs: true}),
		timeout:   timeout,
		maxBytes:  maxBytes,
		userAgent: defaultDesktopUA,
	}
}

func (b *BypassProxyFetch) Meta() entity.StrategyMeta {
	return entity.StrategyMeta{
		Name:            "bypass_proxy",
		Priority:        entity.PriorityMedium,
		Capabilities:    map[entity.Capability]bool{entity.CapabilityPaywallBypass: true},
		BaseSuccessRate: 0.4,
		AvgResponseTime: 4,
	}
}

func (b *BypassProxyFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(b.Meta(), rawURL) && len(b.templates) > 0
}

func (b *BypassProxyFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	var lastErr error
	for _, tmpl := range b.templates {
		select {
		case <-ctx.Done():
			return entity.Failure(rawURL, "bypass_proxy", ctx.Err())
		case <-time.After(randomDelay(2*time.Second, 5*time.Second)):
		}

		target := strings.ReplaceAll(tmpl, "{url}", rawURL)
		body, _, status, err := httpclient.Get(ctx, b.client, b.timeout, target, b.userAgent, b.maxBytes)
		if err != nil {
			lastErr = err
			continue
		}
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("proxy %s returned status %d", tmpl, status)
			continue
		}
		if len(body) <= 1000 {
			lastErr = fmt.Errorf("proxy %s returned short response (%d bytes)", tmpl, len(body))
			continue
		}
		return entity.Ok(rawURL, "bypass_proxy", "", string(body))
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no bypass proxy templates configured")
	}
	return entity.Failure(rawURL, "bypass_proxy", lastErr)
}

func randomDelay(minD, maxD time.Duration) time.Duration {
	if maxD <= minD {
		return minD
	}
	span := maxD - minD
	return minD + time.Duration(rand.Int63n(int64(span)))
}
