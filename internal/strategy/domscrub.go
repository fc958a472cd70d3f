package strategy

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/httpclient"
)

var styleBlockPhrases = []string{"paywall", "blur", "hidden"}

// DomScrubFetch does a direct fetch, removes elements matching a configured
// paywall-selector set and <style> blocks mentioning paywall/blur/hidden,
// strips scripts like JSDisabledFetch does, then runs readability.
type DomScrubFetch struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	selectors []string
}

func NewDomScrubFetch(selectors []string, timeout time.Duration, maxBytes int64) *DomScrubFetch {
	return &DomScrubFetch{
		client:    httpclient.NewSafeClient(httpclient.Options{Timeout: timeout, MaxRedirects: 10, DenyPrivateIPs: true}),
		timeout:   timeout,
		maxBytes:  maxBytes,
		selectors: selectors,
	}
}

func (d *DomScrubFetch) Meta() entity.StrategyMeta {
	return entity.StrategyMeta{
		Name:            "dom_scrub",
		Priority:        entity.PriorityMedium,
		Capabilities:    map[entity.Capability]bool{entity.CapabilityBasicFetch: true},
		BaseSuccessRate: 0.45,
		AvgResponseTime: 2.5,
	}
}

func (d *DomScrubFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(d.Meta(), rawURL)
}

func (d *DomScrubFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	if err := httpclient.ValidateURL(rawURL, true); err != nil {
		return entity.Failure(rawURL, "dom_scrub", err)
	}
	body, finalURL, status, err := httpclient.Get(ctx, d.client, d.timeout, rawURL, defaultDesktopUA, d.maxBytes)
	if err != nil {
		return entity.Failure(rawURL, "dom_scrub", err)
	}
	if status < 200 || status >= 300 {
		return entity.Failure(rawURL, "dom_scrub", fmt.Errorf("http status %d", status))
	}

	scrubbed, err := d.scrub(body)
	if err != nil {
		return entity.Failure(rawURL, "dom_scrub", err)
	}

	content, title, _, err := extractReadable([]byte(scrubbed), finalURL)
	if err != nil {
		return entity.Failure(rawURL, "dom_scrub", err)
	}
	return entity.Ok(rawURL, "dom_scrub", title, content)
}

func (d *DomScrubFetch) scrub(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse failed: %w", err)
	}

	for _, sel := range d.selectors {
		selector := fmt.Sprintf(`[class*="%s"], [id*="%s"]`, sel, sel)
		doc.Find(selector).Remove()
	}
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(s.Text())
		for _, kw := range styleBlockPhrases {
			if strings.Contains(text, kw) {
				s.Remove()
				return
			}
		}
	})
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(s.Text())
		for _, kw := range scriptBlockPhrases {
			if strings.Contains(text, kw) {
				s.Remove()
				return
			}
		}
	})

	html, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialize failed: %w", err)
	}
	return html, nil
}
