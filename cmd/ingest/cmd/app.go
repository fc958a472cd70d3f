// Package cmd implements the ingest engine's CLI: a cobra root command
// plus submit/submit-bulk/worker/status/nuclear-retry subcommands, all
// sharing one bootstrap that wires the Strategy Cascade Engine, the
// Resilience Layer, the Search-Fallback path, and the Worker/Queue
// runtime out of internal/config. Grounded on the teacher's
// cmd/worker/main.go bootstrap shape (initLogger, database pool,
// migrations, graceful shutdown), restructured around
// rohmanhakim-docs-crawler's internal/cli/root.go cobra layout.
package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ingestengine/internal/cascade"
	"ingestengine/internal/config"
	"ingestengine/internal/contentstore"
	"ingestengine/internal/db"
	"ingestengine/internal/infra/notifier"
	"ingestengine/internal/jobqueue"
	"ingestengine/internal/nuclear"
	"ingestengine/internal/ratelimit"
	"ingestengine/internal/resilience/circuitbreaker"
	"ingestengine/internal/resilience/registry"
	"ingestengine/internal/resilience/retry"
	"ingestengine/internal/searchfallback"
	"ingestengine/internal/searchqueue"
	"ingestengine/internal/strategy"
	"ingestengine/internal/worker"
)

const resilienceStateDir = "./data/resilience"

// app bundles every component a subcommand might need. Not every
// subcommand uses every field (submit never touches the worker pool;
// status never touches the cascade), but building the whole graph once
// keeps the wiring in one place instead of scattered per-subcommand.
type app struct {
	cfg *config.Config

	db       *sql.DB
	queue    *jobqueue.Queue
	content  *contentstore.Store
	engine   *cascade.Engine
	registry *registry.Registry
	limiter  *ratelimit.SearchQuotaLimiter
	search   *searchfallback.Service
	nukeStore *nuclear.Store
	scheduler *nuclear.Scheduler
	pool      *worker.Pool
	notify    notifier.Notifier
}

func newID() string {
	return uuid.New().String()
}

// buildApp loads configuration, opens the database, runs migrations, and
// constructs every package this engine is made of. Callers close it with
// app.Close() before the process exits.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.StrategyConfigFile != "" {
		meta, err := config.LoadStrategyMetadata(cfg.StrategyConfigFile)
		if err != nil {
			slog.Warn("strategy metadata file failed to load, using env-sourced defaults", slog.Any("error", err))
		} else {
			cfg.ApplyStrategyMetadata(meta)
		}
	}

	database, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	queue := jobqueue.New(database)
	content := contentstore.New(database)

	strategies, err := buildStrategies(cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("build strategies: %w", err)
	}
	engine := cascade.New(strategies, cascade.NewStatsStore(cfg.StatsFile), cfg.ContentAnalyzer())

	if err := os.MkdirAll(resilienceStateDir, 0o755); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("create resilience state dir: %w", err)
	}
	stateStore := circuitbreaker.NewFileStateStore(resilienceStateDir)
	history := retry.NewFileHistory(resilienceStateDir)
	resilienceRegistry := registry.New(stateStore, history)

	limiter := ratelimit.NewSearchQuotaLimiter(cfg.SearchDailyQuota)
	searchQueue := searchqueue.New(database)
	search := searchfallback.New(cfg.SearchAPIKey, cfg.SearchCX, searchQueue, resilienceRegistry, limiter, newID, cfg.RetryAttempts)

	nukeStore := nuclear.New(database, cfg.NuclearMaxRetryAttempts, cfg.HumanInterventionThreshold)
	notify := buildNotifier(cfg)
	scheduler := nuclear.NewScheduler(nukeStore, engine, search, content, notify, newID)

	poolCfg := worker.Config{PoolSize: cfg.WorkerPoolSize, ClipSize: cfg.ContentClipSize, MaxRetries: cfg.RetryAttempts}
	pool := worker.NewPool(poolCfg, queue, content, engine, search, nukeStore, newID)

	return &app{
		cfg:       cfg,
		db:        database,
		queue:     queue,
		content:   content,
		engine:    engine,
		registry:  resilienceRegistry,
		limiter:   limiter,
		search:    search,
		nukeStore: nukeStore,
		scheduler: scheduler,
		pool:      pool,
		notify:    notify,
	}, nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// buildNotifier wires the configured escalation channel, falling back to
// a no-op when neither webhook URL is set.
func buildNotifier(cfg *config.Config) notifier.Notifier {
	if cfg.SlackWebhookURL != "" {
		return notifier.NewSlackNotifier(notifier.SlackConfig{Enabled: true, WebhookURL: cfg.SlackWebhookURL, Timeout: cfg.DefaultTimeout})
	}
	if cfg.DiscordWebhookURL != "" {
		return notifier.NewDiscordNotifier(notifier.DiscordConfig{Enabled: true, WebhookURL: cfg.DiscordWebhookURL, Timeout: cfg.DefaultTimeout})
	}
	return notifier.NewNoOpNotifier()
}

// buildStrategies registers every concrete fetch strategy this engine
// ships, in cascade order (cheapest/most-reliable first). HeadlessFetch
// is deliberately not registered: it needs a browser-automation backend
// this module has no dependency on (see DESIGN.md).
func buildStrategies(cfg *config.Config) ([]strategy.Strategy, error) {
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	sessionStore := strategy.NewRedisSessionStore(redisClient)

	return []strategy.Strategy{
		strategy.NewDirectFetch(cfg.UserAgents.Default, cfg.DefaultTimeout, maxBodyBytes(cfg), false),
		strategy.NewBotSpoofFetch(cfg.DefaultTimeout, maxBodyBytes(cfg), false),
		strategy.NewJSDisabledFetch(cfg.DefaultTimeout, maxBodyBytes(cfg)),
		strategy.NewReaderModeFetch(cfg.DefaultTimeout, maxBodyBytes(cfg), cfg.MinWordCount),
		strategy.NewDomScrubFetch(cfg.PaywallSelectors, cfg.DefaultTimeout, maxBodyBytes(cfg)),
		strategy.NewPartialLoadFetch(),
		strategy.NewAuthenticatedFetch(authCredentials(cfg), sessionStore, sessionTTL(cfg), cfg.DefaultTimeout, maxBodyBytes(cfg), cfg.ContentAnalyzer()),
		strategy.NewBypassProxyFetch(cfg.BypassProxyTemplates, cfg.DefaultTimeout, maxBodyBytes(cfg)),
		strategy.NewArchiveMirrorFetch(cfg.ArchiveMirrors, cfg.DefaultTimeout, maxBodyBytes(cfg)),
		strategy.NewWebArchiveLatestFetch(cfg.DefaultTimeout, maxBodyBytes(cfg)),
		strategy.NewWebArchiveMultiTimeframeFetch(cfg.ArchiveTimeframes, cfg.DefaultTimeout, maxBodyBytes(cfg)),
		strategy.NewAIExtractorFetch(cfg.FirecrawlAPIKey, cfg.DefaultTimeout, strategy.NewUsageCounter(cfg.StatsFile+".ai_usage.json"), cfg.FirecrawlMonthlyLimit, cfg.FirecrawlAPIKey != ""),
	}, nil
}

// authCredentials adapts config.SiteCredential (the JSON-decoded,
// env-sourced shape) into strategy.SiteCredential (the shape the
// authenticated-fetch strategy consumes).
func authCredentials(cfg *config.Config) map[string]strategy.SiteCredential {
	raw := cfg.AuthSiteCredentials()
	out := make(map[string]strategy.SiteCredential, len(raw))
	for host, cred := range raw {
		out[host] = strategy.SiteCredential{Username: cred.Username, Password: cred.Password, LoginURL: cred.LoginURL}
	}
	return out
}

func maxBodyBytes(cfg *config.Config) int64 {
	return int64(cfg.ContentClipSize) * 50
}

func sessionTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.SessionTTLHours) * time.Hour
}
