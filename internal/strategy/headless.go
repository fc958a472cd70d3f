package strategy

import (
	"context"
	"fmt"
	"time"

	"ingestengine/internal/domain/entity"
)

// HeadlessEngine is the capability contract for whatever headless browser
// backend is wired in (chromedp, a remote Playwright service, ...). It is
// kept as a narrow interface so the strategy itself stays backend-agnostic;
// no concrete headless engine ships in this module (see DESIGN.md).
type HeadlessEngine interface {
	// Navigate opens url, waits for the given readiness condition (e.g.
	// "domcontentloaded"), sleeps settleDelay to let client-side rendering
	// finish, then returns the rendered DOM as text.
	Navigate(ctx context.Context, url, waitCondition string, settleDelay time.Duration) (renderedHTML string, err error)
}

// HeadlessFetch drives a headless browser. It is heavy and can serialize
// badly with concurrent workers; its metadata marks it fallback priority,
// which the cascade ordering does not read.
type HeadlessFetch struct {
	engine       HeadlessEngine
	settleDelay  time.Duration
}

func NewHeadlessFetch(engine HeadlessEngine) *HeadlessFetch {
	return &HeadlessFetch{engine: engine, settleDelay: 3 * time.Second}
}

func (h *HeadlessFetch) Meta() entity.StrategyMeta {
	return entity.StrategyMeta{
		Name:            "headless",
		Priority:        entity.PriorityFallback,
		Capabilities:    map[entity.Capability]bool{entity.CapabilityJSRender: true},
		BaseSuccessRate: 0.55,
		AvgResponseTime: 12,
	}
}

func (h *HeadlessFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(h.Meta(), rawURL) && h.engine != nil
}

func (h *HeadlessFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	if h.engine == nil {
		return entity.Failure(rawURL, "headless", fmt.Errorf("no headless engine configured"))
	}
	html, err := h.engine.Navigate(ctx, rawURL, "domcontentloaded", h.settleDelay)
	if err != nil {
		return entity.Failure(rawURL, "headless", err)
	}
	content, title, _, err := extractReadable([]byte(html), rawURL)
	if err != nil {
		return entity.Failure(rawURL, "headless", err)
	}
	return entity.Ok(rawURL, "headless", title, content)
}
