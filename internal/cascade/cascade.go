// Package cascade implements the Strategy Cascade Engine: it orders
// registered fetch strategies by preference and learned success rate,
// invokes each in turn, and runs the Content Analyzer over every
// successful fetch to decide whether the content is acceptable or merely
// a truncated/paywalled page that should fall through to the next
// strategy.
package cascade

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ingestengine/internal/contentanalyzer"
	"ingestengine/internal/domain/entity"
	"ingestengine/internal/observability/metrics"
	"ingestengine/internal/observability/tracing"
	"ingestengine/internal/strategy"
)

// Engine drives the ordered cascade of strategies for one URL at a time.
type Engine struct {
	strategies []strategy.Strategy
	stats      *StatsStore
	analyzer   contentanalyzer.Config
}

func New(strategies []strategy.Strategy, stats *StatsStore, analyzer contentanalyzer.Config) *Engine {
	return &Engine{strategies: strategies, stats: stats, analyzer: analyzer}
}

// Fetch runs the cascade against rawURL with an optional caller-preferred
// ordering, returning the first acceptable result or a failure result
// summarizing the last underlying error.
func (e *Engine) Fetch(ctx context.Context, rawURL string, preferred []string) entity.FetchResult {
	ctx, span := tracing.GetTracer().Start(ctx, "cascade.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("cascade.url", rawURL))

	order := e.order(rawURL, preferred)
	if len(order) == 0 {
		return entity.Failure(rawURL, "cascade", fmt.Errorf("no strategy can handle this URL"))
	}

	var lastErr error
	for _, s := range order {
		meta := s.Meta()
		attemptCtx, attemptSpan := tracing.GetTracer().Start(ctx, "cascade.attempt")
		attemptSpan.SetAttributes(attribute.String("cascade.strategy", meta.Name))

		start := time.Now()
		result := s.Fetch(attemptCtx, rawURL)
		elapsed := time.Since(start).Seconds()

		if !result.Success {
			if result.Error == strategy.ErrUsageExhausted.Error() {
				// Usage-exhausted strategies are skipped, not counted as failures.
				attemptSpan.End()
				continue
			}
			e.stats.Record(meta.Name, recordFailure, elapsed)
			metrics.RecordCascadeAttempt(meta.Name, "failure", time.Since(start))
			if result.Error != "" {
				lastErr = fmt.Errorf("%s: %s", meta.Name, result.Error)
			}
			attemptSpan.SetStatus(codes.Error, result.Error)
			attemptSpan.End()
			continue
		}

		analysis := e.analyzer.Analyze(result.Content)
		if result.Title == "" {
			result.Title = analysis.Title
		}

		if analysis.IsTruncated || analysis.IsLikelyPaywall {
			result.IsTruncated = true
			e.stats.Record(meta.Name, recordTruncated, elapsed)
			metrics.RecordCascadeAttempt(meta.Name, "truncated", time.Since(start))
			lastErr = fmt.Errorf("%s: content truncated or paywalled", meta.Name)
			attemptSpan.SetAttributes(attribute.Bool("cascade.truncated", true))
			attemptSpan.End()
			continue
		}

		e.stats.Record(meta.Name, recordSuccess, elapsed)
		metrics.RecordCascadeAttempt(meta.Name, "success", time.Since(start))
		result.ProcessingTime = time.Since(start)
		attemptSpan.End()
		return result
	}

	metrics.CascadeExhaustedTotal.Inc()
	if lastErr == nil {
		lastErr = fmt.Errorf("all strategies exhausted")
	}
	return entity.Failure(rawURL, "cascade", lastErr)
}

// order implements the dispatch-time ordering algorithm: the caller's
// preferred list (deduped, in order) first, then the remaining eligible
// strategies sorted by observed success rate descending.
func (e *Engine) order(rawURL string, preferred []string) []strategy.Strategy {
	byName := make(map[string]strategy.Strategy, len(e.strategies))
	for _, s := range e.strategies {
		byName[s.Meta().Name] = s
	}

	var ordered []strategy.Strategy
	seen := make(map[string]bool)

	for _, name := range preferred {
		s, ok := byName[name]
		if !ok || seen[name] {
			continue
		}
		if !e.eligible(s, rawURL) {
			continue
		}
		ordered = append(ordered, s)
		seen[name] = true
	}

	var remaining []strategy.Strategy
	for _, s := range e.strategies {
		name := s.Meta().Name
		if seen[name] || !e.eligible(s, rawURL) {
			continue
		}
		remaining = append(remaining, s)
	}

	sort.SliceStable(remaining, func(i, j int) bool {
		ri := e.stats.Get(remaining[i].Meta().Name).ObservedSuccessRate(remaining[i].Meta().BaseSuccessRate)
		rj := e.stats.Get(remaining[j].Meta().Name).ObservedSuccessRate(remaining[j].Meta().BaseSuccessRate)
		return ri > rj
	})

	return append(ordered, remaining...)
}

func (e *Engine) eligible(s strategy.Strategy, rawURL string) bool {
	if !s.CanHandle(rawURL) {
		return false
	}
	meta := s.Meta()
	if meta.HasUsageLimits && meta.RemainingUsage != nil && *meta.RemainingUsage <= 0 {
		return false
	}
	return true
}
