// Package config loads the ingestion engine's top-level configuration.
// Grounded on lueurxax-TelegramDigestBot's internal/config/config.go:
// struct-tag env parsing plus .env loading for local development. Fields
// that gate security-sensitive behavior (database DSN, search/firecrawl
// API keys) are `,required` and fail the whole load closed; everything
// else carries an `envDefault` and fails open onto it.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"ingestengine/internal/contentanalyzer"
)

// SiteCredential is one entry of auth_site_credentials: site -> {username, password}.
type SiteCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
	LoginURL string `json:"login_url"`
}

// UserAgents holds three configurable user-agent strings. Only Default is
// wired in, to the direct strategy; bot-spoof and reader-mode send their
// own built-in user agents, and no strategy rotates between agents.
type UserAgents struct {
	Default string `env:"DEFAULT" envDefault:"Mozilla/5.0 (compatible; ingestengine/1.0)"`
	Bot     string `env:"BOT" envDefault:"ingestengine-bot/1.0 (+https://example.com/bot)"`
	Reader  string `env:"READER" envDefault:"Mozilla/5.0 (compatible; ingestengine-reader/1.0)"`
}

// Config is the full recognized-keys list, plus the ambient DSNs/API keys
// needed to wire it up. Load() never returns a partially-applied struct:
// either every required key resolved or the whole load fails.
type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required"`

	SearchAPIKey        string `env:"SEARCH_API_KEY,required"`
	SearchCX            string `env:"SEARCH_CX,required"`
	FirecrawlAPIKey     string `env:"FIRECRAWL_API_KEY,required"`
	FirecrawlMonthlyLimit int  `env:"FIRECRAWL_MONTHLY_LIMIT" envDefault:"500"`

	SlackWebhookURL   string `env:"SLACK_WEBHOOK_URL"`
	DiscordWebhookURL string `env:"DISCORD_WEBHOOK_URL"`

	StatsFile           string        `env:"STATS_FILE" envDefault:"./data/strategy_stats.json"`
	MaxConcurrent        int          `env:"MAX_CONCURRENT" envDefault:"5"`
	DefaultTimeout       time.Duration `env:"DEFAULT_TIMEOUT" envDefault:"30s"`
	RetryAttempts        int          `env:"RETRY_ATTEMPTS" envDefault:"2"`
	PreferredStrategies  []string     `env:"PREFERRED_STRATEGIES" envSeparator:","`

	SearchDailyQuota int `env:"SEARCH_DAILY_QUOTA" envDefault:"8000"`
	// SearchHourlyCap is accepted for compatibility with spec §6's
	// recognized-keys list but is not used to size the burst window: the
	// hourly budget is always derived as floor(SearchDailyQuota/24)
	// (SPEC_FULL.md's Open Question resolution), so a mismatched value
	// here is silently superseded rather than honored.
	SearchHourlyCap int `env:"SEARCH_HOURLY_CAP" envDefault:"333"`

	AuthSiteCredentialsJSON string `env:"AUTH_SITE_CREDENTIALS_JSON" envDefault:"{}"`
	SessionTTLHours         int    `env:"SESSION_TTL_HOURS" envDefault:"6"`
	RedisAddr               string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	PaywallPhrases      []string `env:"PAYWALL_PHRASES" envSeparator:"|"`
	PaywallSelectors    []string `env:"PAYWALL_SELECTORS" envSeparator:","`
	MinWordCount        int      `env:"MIN_WORD_COUNT" envDefault:"150"`
	TitleRatioThreshold float64  `env:"TITLE_RATIO_THRESHOLD" envDefault:"0.1"`

	UserAgents UserAgents `envPrefix:"USER_AGENT_"`

	BypassProxyTemplates []string `env:"BYPASS_PROXY_TEMPLATES" envSeparator:","`
	ArchiveMirrors       []string `env:"ARCHIVE_MIRRORS" envSeparator:","`
	ArchiveTimeframes    []string `env:"ARCHIVE_TIMEFRAMES" envSeparator:","`

	HumanInterventionThreshold int    `env:"HUMAN_INTERVENTION_THRESHOLD" envDefault:"30"`
	NuclearMaxRetryAttempts    int    `env:"NUCLEAR_MAX_RETRY_ATTEMPTS" envDefault:"100"`
	NuclearRetrySchedule       string `env:"NUCLEAR_RETRY_SCHEDULE" envDefault:"0 */6 * * *"`

	WorkerPoolSize int `env:"WORKER_POOL_SIZE" envDefault:"5"`
	ContentClipSize int `env:"CONTENT_CLIP_SIZE" envDefault:"20000"`
	BulkConcurrency int `env:"BULK_CONCURRENCY" envDefault:"5"`

	// StrategyConfigFile optionally points at a YAML file overlaying the
	// paywall/proxy/archive/user-agent fields above (see strategymeta.go).
	// Left empty, every field above keeps its env-sourced value.
	StrategyConfigFile string `env:"STRATEGY_CONFIG_FILE"`

	OpsAddr string `env:"OPS_ADDR" envDefault:":9090"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (if present) then parses environment variables into a
// Config. A missing or invalid required key fails the whole load; every
// other key falls back to its default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// AuthSiteCredentials decodes AuthSiteCredentialsJSON. An invalid value is
// not security-sensitive enough to fail the whole load closed — it only
// disables authenticated fetching for that run — so this logs a warning
// and returns an empty map rather than erroring.
func (c *Config) AuthSiteCredentials() map[string]SiteCredential {
	var creds map[string]SiteCredential
	if err := json.Unmarshal([]byte(c.AuthSiteCredentialsJSON), &creds); err != nil {
		slog.Warn("config: invalid AUTH_SITE_CREDENTIALS_JSON, authenticated fetch disabled", slog.Any("error", err))
		return map[string]SiteCredential{}
	}
	return creds
}

// ContentAnalyzer builds the contentanalyzer.Config this configuration
// describes, falling back to contentanalyzer.DefaultConfig()'s vocabulary
// for any list left empty.
func (c *Config) ContentAnalyzer() contentanalyzer.Config {
	defaults := contentanalyzer.DefaultConfig()
	analyzerCfg := contentanalyzer.Config{
		PaywallPhrases:      c.PaywallPhrases,
		PaywallSelectors:    c.PaywallSelectors,
		MinWordCount:        c.MinWordCount,
		TitleRatioThreshold: c.TitleRatioThreshold,
	}
	if len(analyzerCfg.PaywallPhrases) == 0 {
		analyzerCfg.PaywallPhrases = defaults.PaywallPhrases
	}
	if len(analyzerCfg.PaywallSelectors) == 0 {
		analyzerCfg.PaywallSelectors = defaults.PaywallSelectors
	}
	if analyzerCfg.MinWordCount == 0 {
		analyzerCfg.MinWordCount = defaults.MinWordCount
	}
	if analyzerCfg.TitleRatioThreshold == 0 {
		analyzerCfg.TitleRatioThreshold = defaults.TitleRatioThreshold
	}
	return analyzerCfg
}
