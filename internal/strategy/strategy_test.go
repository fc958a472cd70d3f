package strategy

import (
	"testing"
	"time"

	"ingestengine/internal/domain/entity"
)

func TestDefaultCanHandle_UniversalWhenNoDomainsConfigured(t *testing.T) {
	meta := entity.StrategyMeta{Name: "x"}
	if !DefaultCanHandle(meta, "https://example.com/a") {
		t.Errorf("expected universal strategy to handle any URL")
	}
}

func TestDefaultCanHandle_RestrictedToConfiguredDomains(t *testing.T) {
	meta := entity.StrategyMeta{Name: "x", SupportedDomains: []string{"nytimes.com"}}

	if !DefaultCanHandle(meta, "https://www.nytimes.com/a") {
		t.Errorf("expected subdomain match to handle")
	}
	if DefaultCanHandle(meta, "https://example.com/a") {
		t.Errorf("expected non-matching domain to be rejected")
	}
}

func TestDirectFetch_Meta(t *testing.T) {
	d := NewDirectFetch("", 10*time.Second, 1<<20, true)
	meta := d.Meta()
	if meta.Name != "direct" {
		t.Errorf("expected name 'direct', got %q", meta.Name)
	}
	if !meta.HasCapability(entity.CapabilityBasicFetch) {
		t.Errorf("expected basic-fetch capability")
	}
}

func TestBotSpoofFetch_MetaDiffersFromDirect(t *testing.T) {
	b := NewBotSpoofFetch(10*time.Second, 1<<20, true)
	if b.Meta().Name != "bot_spoof" {
		t.Errorf("expected name 'bot_spoof', got %q", b.Meta().Name)
	}
}

func TestAIExtractorFetch_DisabledByDefault(t *testing.T) {
	a := NewAIExtractorFetch("key", 10*time.Second, NewUsageCounter(t.TempDir()+"/usage.json"), 500, false)
	if a.CanHandle("https://example.com/a") {
		t.Errorf("expected disabled extractor to reject all URLs")
	}
}

func TestAIExtractorFetch_UsageCounterPersists(t *testing.T) {
	path := t.TempDir() + "/usage.json"
	counter := NewUsageCounter(path)
	ok, used, err := counter.IncrementAndCheck(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || used != 1 {
		t.Errorf("expected first call within limit, used=1, got ok=%v used=%d", ok, used)
	}

	counter.IncrementAndCheck(2)
	ok, used, err = counter.IncrementAndCheck(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || used != 3 {
		t.Errorf("expected third call to exceed limit=2, got ok=%v used=%d", ok, used)
	}

	_, used, err = NewUsageCounter(path).IncrementAndCheck(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != 4 {
		t.Errorf("expected a new counter on the same file to continue at used=4, got %d", used)
	}
}
