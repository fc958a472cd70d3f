package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadStrategyMetadata_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.yaml")
	content := `
paywall:
  phrases:
    - "subscribe to continue"
  selectors:
    - ".paywall-banner"
bypass_proxy_templates:
  - "https://proxy.example.com/{{url}}"
archive_mirrors:
  - "https://archive.example.com"
archive_timeframes:
  - "2024"
user_agents:
  default: "custom-agent/1.0"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test fixture: %v", err)
	}

	meta, err := LoadStrategyMetadata(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meta.Paywall.Phrases) != 1 || meta.Paywall.Phrases[0] != "subscribe to continue" {
		t.Errorf("expected paywall phrase parsed, got %v", meta.Paywall.Phrases)
	}
	if meta.UserAgents.Default != "custom-agent/1.0" {
		t.Errorf("expected custom default user agent, got %q", meta.UserAgents.Default)
	}
}

func TestLoadStrategyMetadata_MissingFileErrors(t *testing.T) {
	if _, err := LoadStrategyMetadata("/nonexistent/strategy.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestApplyStrategyMetadata_OverlaysNonEmptyFieldsOnly(t *testing.T) {
	requiredEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meta := &StrategyMetadata{}
	meta.Paywall.Phrases = []string{"members only"}

	cfg.ApplyStrategyMetadata(meta)

	if len(cfg.PaywallPhrases) != 1 || cfg.PaywallPhrases[0] != "members only" {
		t.Errorf("expected overlay to replace paywall phrases, got %v", cfg.PaywallPhrases)
	}
	if len(cfg.ArchiveMirrors) != 0 {
		t.Errorf("expected untouched field to stay empty, got %v", cfg.ArchiveMirrors)
	}
}
