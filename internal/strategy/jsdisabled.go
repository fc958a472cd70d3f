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

var scriptBlockPhrases = []string{"paywall", "subscription", "premium", "auth", "login"}

// JSDisabledFetch does a direct fetch, strips <script> elements whose body
// mentions a paywall/auth keyword, then runs readability on what remains.
type JSDisabledFetch struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

func NewJSDisabledFetch(timeout time.Duration, maxBytes int64) *JSDisabledFetch {
	return &JSDisabledFetch{
		client:   httpclient.NewSafeClient(httpclient.Options{Timeout: timeout, MaxRedirects: 10, DenyPrivateIPs: true}),
		timeout:  timeout,
		maxBytes: maxBytes,
	}
}

func (j *JSDisabledFetch) Meta() entity.StrategyMeta {
	return entity.StrategyMeta{
		Name:            "js_disabled",
		Priority:        entity.PriorityMedium,
		Capabilities:    map[entity.Capability]bool{entity.CapabilityBasicFetch: true},
		BaseSuccessRate: 0.45,
		AvgResponseTime: 2,
	}
}

func (j *JSDisabledFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(j.Meta(), rawURL)
}

func (j *JSDisabledFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	if err := httpclient.ValidateURL(rawURL, true); err != nil {
		return entity.Failure(rawURL, "js_disabled", err)
	}
	body, finalURL, status, err := httpclient.Get(ctx, j.client, j.timeout, rawURL, defaultDesktopUA, j.maxBytes)
	if err != nil {
		return entity.Failure(rawURL, "js_disabled", err)
	}
	if status < 200 || status >= 300 {
		return entity.Failure(rawURL, "js_disabled", fmt.Errorf("http status %d", status))
	}

	scrubbed, err := stripScripts(body, scriptBlockPhrases)
	if err != nil {
		return entity.Failure(rawURL, "js_disabled", err)
	}

	content, title, _, err := extractReadable([]byte(scrubbed), finalURL)
	if err != nil {
		return entity.Failure(rawURL, "js_disabled", err)
	}
	return entity.Ok(rawURL, "js_disabled", title, content)
}

// stripScripts removes <script> elements whose text body contains any of
// the given keywords, and returns the re-serialized document.
func stripScripts(body []byte, keywords []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse failed: %w", err)
	}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(s.Text())
		for _, kw := range keywords {
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
