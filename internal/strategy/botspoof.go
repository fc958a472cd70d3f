package strategy

import (
	"context"
	"time"

	"ingestengine/internal/domain/entity"
)

const googlebotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

// BotSpoofFetch is identical to DirectFetch but announces itself as a
// search-engine crawler, which some sites treat more permissively.
type BotSpoofFetch struct {
	inner *DirectFetch
}

// NewBotSpoofFetch builds the bot-spoof strategy atop the direct fetcher
// with the Googlebot user agent substituted in.
func NewBotSpoofFetch(timeout time.Duration, maxBytes int64, denyPrivateIPs bool) *BotSpoofFetch {
	return &BotSpoofFetch{inner: NewDirectFetch(googlebotUA, timeout, maxBytes, denyPrivateIPs)}
}

func (b *BotSpoofFetch) Meta() entity.StrategyMeta {
	m := b.inner.Meta()
	m.Name = "bot_spoof"
	m.Priority = entity.PriorityHigh
	m.BaseSuccessRate = 0.55
	return m
}

func (b *BotSpoofFetch) CanHandle(rawURL string) bool {
	return DefaultCanHandle(b.Meta(), rawURL)
}

func (b *BotSpoofFetch) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	res := b.inner.Fetch(ctx, rawURL)
	res.Strategy = "bot_spoof"
	res.Method = "bot_spoof"
	return res
}
