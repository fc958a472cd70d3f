// Package ratelimit layers the search service's two independent budgets
// spec §4.7 calls for: a daily quota with UTC-midnight rollover and an
// hourly burst cap enforced via a sliding window, grounded on
// `helpers/google_search_fallback.py`'s `RateLimiter` class.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SearchQuotaLimiter enforces spec §4.7's two budgets for the search
// fallback service: a daily ceiling (default 8000, resets at UTC
// midnight) and an hourly burst cap of floor(daily/24), enforced
// worker-side via a sliding window rather than by the daily counter.
type SearchQuotaLimiter struct {
	dailyQuota int

	mu   sync.Mutex
	date string
	used int

	burst *slidingWindow
}

// NewSearchQuotaLimiter builds a limiter with the given daily quota
// (default 8000 if <= 0).
func NewSearchQuotaLimiter(dailyQuota int) *SearchQuotaLimiter {
	if dailyQuota <= 0 {
		dailyQuota = 8000
	}
	return &SearchQuotaLimiter{
		dailyQuota: dailyQuota,
		burst:      newSlidingWindow(),
	}
}

// HourlyCap returns floor(dailyQuota/24), the worker-side burst bound. The
// source computed this inconsistently (daily/24 in one path, a hardcoded
// 333 in another); this module always derives it from the configured
// daily quota.
func (s *SearchQuotaLimiter) HourlyCap() int {
	return s.dailyQuota / 24
}

// WaitIfNeeded rolls the daily counter over on a UTC date change, blocks
// until the next UTC midnight if the daily quota is exhausted, then
// records one consumed unit. There is intentionally no per-second
// spacing — the hourly burst check is the only short-timescale throttle.
func (s *SearchQuotaLimiter) WaitIfNeeded(ctx context.Context) error {
	for {
		wait, ready := s.tryConsumeDaily()
		if ready {
			return nil
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *SearchQuotaLimiter) tryConsumeDaily() (wait time.Duration, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	if s.date != today {
		s.date = today
		s.used = 0
	}

	if s.used < s.dailyQuota {
		s.used++
		return 0, true
	}

	midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return midnight.Sub(now), false
}

// AllowBurst consults the hourly sliding window; callers (worker-side)
// must check this before issuing a search call even when the daily
// budget has room.
func (s *SearchQuotaLimiter) AllowBurst(ctx context.Context) (bool, error) {
	return s.burst.allow(time.Now().UTC(), s.HourlyCap(), time.Hour), nil
}
