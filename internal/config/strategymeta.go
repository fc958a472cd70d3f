package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyMetadata is the on-disk tuning surface for the cascade's
// content-shaped knobs: paywall detection vocabulary, bypass-proxy
// templates, web-archive mirrors/timeframes, and user agents.
// Grounded on the teacher's internal/config/security.go YAML-file
// loading pattern, retargeted from auth/JWT settings onto strategy
// metadata.
type StrategyMetadata struct {
	Paywall struct {
		Phrases   []string `yaml:"phrases"`
		Selectors []string `yaml:"selectors"`
	} `yaml:"paywall"`
	BypassProxyTemplates []string `yaml:"bypass_proxy_templates"`
	ArchiveMirrors       []string `yaml:"archive_mirrors"`
	ArchiveTimeframes    []string `yaml:"archive_timeframes"`
	UserAgents           struct {
		Default string `yaml:"default"`
		Bot     string `yaml:"bot"`
		Reader  string `yaml:"reader"`
	} `yaml:"user_agents"`
}

// LoadStrategyMetadata reads and parses a strategy metadata file. path is
// expected to come from STRATEGY_CONFIG_FILE, a trusted operator-supplied
// setting, not user input.
func LoadStrategyMetadata(path string) (*StrategyMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load strategy metadata: %w", err)
	}
	var meta StrategyMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse strategy metadata: %w", err)
	}
	return &meta, nil
}

// ApplyStrategyMetadata overlays YAML-sourced strategy tuning onto c,
// taking priority over the env-sourced fields wherever the YAML file sets
// a non-empty value. A StrategyMetadata with an empty list leaves the
// corresponding env value (or its default) untouched.
func (c *Config) ApplyStrategyMetadata(meta *StrategyMetadata) {
	if meta == nil {
		return
	}
	if len(meta.Paywall.Phrases) > 0 {
		c.PaywallPhrases = meta.Paywall.Phrases
	}
	if len(meta.Paywall.Selectors) > 0 {
		c.PaywallSelectors = meta.Paywall.Selectors
	}
	if len(meta.BypassProxyTemplates) > 0 {
		c.BypassProxyTemplates = meta.BypassProxyTemplates
	}
	if len(meta.ArchiveMirrors) > 0 {
		c.ArchiveMirrors = meta.ArchiveMirrors
	}
	if len(meta.ArchiveTimeframes) > 0 {
		c.ArchiveTimeframes = meta.ArchiveTimeframes
	}
	if meta.UserAgents.Default != "" {
		c.UserAgents.Default = meta.UserAgents.Default
	}
	if meta.UserAgents.Bot != "" {
		c.UserAgents.Bot = meta.UserAgents.Bot
	}
	if meta.UserAgents.Reader != "" {
		c.UserAgents.Reader = meta.UserAgents.Reader
	}
}
