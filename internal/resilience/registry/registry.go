// Package registry wires named circuit breakers and retry policies into
// one singleton per logical service, and exposes a health view over them —
// the same "one breaker per concern" shape the teacher's circuitbreaker
// package offered via ClaudeAPIConfig/FeedFetchConfig/WebScraperConfig,
// generalized to the services this engine actually has.
package registry

import (
	"context"
	"sync"
	"time"

	"ingestengine/internal/domain/entity"
	"ingestengine/internal/resilience/circuitbreaker"
	"ingestengine/internal/resilience/retry"
)

// Service names for the six logical services the registry always builds.
const (
	ArticleProcessing   = "article-processing"
	DatabaseOps         = "database-ops"
	APICalls            = "api-calls"
	LLMOps              = "llm-ops"
	BackgroundProcessing = "background-processing"
	SearchOps           = "search-ops"
)

// defaultRetryPolicy maps each logical service to its default retry
// policy, per the resilience registry's fixed assignment.
var defaultRetryPolicy = map[string]entity.RetryPolicy{
	ArticleProcessing:    entity.NetworkOpsPolicy,
	DatabaseOps:          entity.CriticalOpsPolicy,
	APICalls:             entity.QuickOpsPolicy,
	LLMOps:               entity.HeavyOpsPolicy,
	BackgroundProcessing: entity.HeavyOpsPolicy,
	SearchOps:            entity.QuickOpsPolicy,
}

// Health describes one service's current resilience posture.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthFailed   Health = "failed"
	HealthUnknown  Health = "unknown"
)

// ServiceHealth is the registry's reported view of one service.
type ServiceHealth struct {
	Service      string
	Health       Health
	SuccessRate  float64
	BreakerState entity.BreakerStatus
	TotalRequests int64
	TotalFailures int64
	LastAttemptAt time.Time
}

// service bundles a breaker with its default retry policy.
type service struct {
	breaker *circuitbreaker.CircuitBreaker
	policy  entity.RetryPolicy
}

// Registry is the process-wide singleton set of named services.
type Registry struct {
	retryMgr *retry.Manager

	mu       sync.RWMutex
	services map[string]*service
}

// New builds the registry's six fixed services, loading any persisted
// breaker state from stateStore and recording retry attempts to history.
func New(stateStore circuitbreaker.StateStore, history retry.History) *Registry {
	r := &Registry{
		retryMgr: retry.NewManager(history),
		services: make(map[string]*service),
	}
	for name, cfg := range defaultBreakerConfigs() {
		r.services[name] = &service{
			breaker: circuitbreaker.New(cfg, stateStore),
			policy:  defaultRetryPolicy[name],
		}
	}
	return r
}

func defaultBreakerConfigs() map[string]circuitbreaker.Config {
	cfg := func(name string, failureThreshold, successThreshold int, recovery time.Duration) circuitbreaker.Config {
		return circuitbreaker.Config{
			Name:             name,
			FailureThreshold: failureThreshold,
			SuccessThreshold: successThreshold,
			RecoveryTimeout:  recovery,
			CallTimeout:      30 * time.Second,
		}
	}
	return map[string]circuitbreaker.Config{
		ArticleProcessing:    cfg(ArticleProcessing, 5, 3, 60*time.Second),
		DatabaseOps:          cfg(DatabaseOps, 3, 2, 30*time.Second),
		APICalls:             cfg(APICalls, 5, 2, 20*time.Second),
		LLMOps:               cfg(LLMOps, 3, 2, 120*time.Second),
		BackgroundProcessing: cfg(BackgroundProcessing, 5, 3, 90*time.Second),
		SearchOps:            cfg(SearchOps, 4, 2, 45*time.Second),
	}
}

// Execute runs fn through the named service's breaker, retried per the
// service's default retry policy. Unknown service names run through a
// breaker built from circuitbreaker.DefaultConfig (its state is not
// persisted) and the quick-ops policy.
func (r *Registry) Execute(ctx context.Context, service string, fn func(context.Context) error) error {
	svc := r.lookup(service)
	return r.retryMgr.Do(ctx, service, svc.policy, func(ctx context.Context) error {
		_, err := svc.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return nil, fn(ctx)
		})
		return err
	})
}

func (r *Registry) lookup(name string) *service {
	r.mu.RLock()
	svc, ok := r.services[name]
	r.mu.RUnlock()
	if ok {
		return svc
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if svc, ok = r.services[name]; ok {
		return svc
	}
	svc = &service{
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig(name), nil),
		policy:  entity.QuickOpsPolicy,
	}
	r.services[name] = svc
	return svc
}

// Health reports the current health view for every registered service.
func (r *Registry) Health() []ServiceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]ServiceHealth, 0, len(r.services))
	for name, svc := range r.services {
		snap := svc.breaker.Snapshot()
		views = append(views, ServiceHealth{
			Service:       name,
			Health:        classify(snap),
			SuccessRate:   successRate(snap),
			BreakerState:  snap.State,
			TotalRequests: snap.TotalRequests,
			TotalFailures: snap.TotalFailures,
			LastAttemptAt: snap.LastFailureAt,
		})
	}
	return views
}

// Snapshot is Health, named to match the ops status route that surfaces
// it (GET /status/resilience).
func (r *Registry) Snapshot() []ServiceHealth {
	return r.Health()
}

func successRate(snap entity.BreakerState) float64 {
	if snap.TotalRequests == 0 {
		return 0
	}
	return float64(snap.TotalSuccesses) / float64(snap.TotalRequests)
}

func classify(snap entity.BreakerState) Health {
	if snap.TotalRequests == 0 {
		return HealthUnknown
	}
	if snap.State == entity.BreakerOpen {
		return HealthFailed
	}
	if successRate(snap) < 0.5 {
		return HealthDegraded
	}
	return HealthHealthy
}
