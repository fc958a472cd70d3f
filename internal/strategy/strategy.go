// Package strategy implements the fetch tactics the cascade engine tries in
// order: direct HTTP, paywall-bypass proxies, archive mirrors, bot spoofing,
// reader-mode extraction, authenticated sessions, a headless browser, web
// archive snapshots, and an AI extractor. Every strategy shares one
// contract; none of them throw across the fetch boundary.
package strategy

import (
	"context"
	"net/url"

	"ingestengine/internal/domain/entity"
)

// Strategy is the uniform contract every fetch tactic implements.
type Strategy interface {
	// Meta returns the strategy's static profile (capabilities, priority
	// class, base success rate, ...).
	Meta() entity.StrategyMeta

	// CanHandle reports whether this strategy applies to the given URL.
	// The default behavior (no configured domain list) is "always true".
	CanHandle(rawURL string) bool

	// Fetch attempts to retrieve the URL. It must never return an error
	// that escapes as a panic or an unclassified failure: any internal
	// problem becomes a FetchResult with Success=false.
	Fetch(ctx context.Context, rawURL string) entity.FetchResult
}

// DefaultCanHandle implements the "universal unless a domain list is
// configured" rule shared by most strategies.
func DefaultCanHandle(meta entity.StrategyMeta, rawURL string) bool {
	if len(meta.SupportedDomains) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return meta.SupportsDomain(u.Hostname())
}
