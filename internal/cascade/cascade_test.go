package cascade

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ingestengine/internal/contentanalyzer"
	"ingestengine/internal/domain/entity"
	"ingestengine/internal/strategy"
)

// fakeStrategy is a minimal in-memory strategy.Strategy for cascade tests.
type fakeStrategy struct {
	meta    entity.StrategyMeta
	handles bool
	result  entity.FetchResult
}

func (f fakeStrategy) Meta() entity.StrategyMeta { return f.meta }
func (f fakeStrategy) CanHandle(rawURL string) bool { return f.handles }
func (f fakeStrategy) Fetch(ctx context.Context, rawURL string) entity.FetchResult {
	return f.result
}

func longArticle() string {
	return "<html><head><title>Title</title></head><body><p>" + strings.Repeat("word ", 200) + "</p></body></html>"
}

func TestEngine_Fetch_FirstSuccessWins(t *testing.T) {
	strategies := []strategy.Strategy{
		fakeStrategy{
			meta:    entity.StrategyMeta{Name: "bad", BaseSuccessRate: 0.9},
			handles: true,
			result:  entity.Failure("u", "bad", errors.New("boom")),
		},
		fakeStrategy{
			meta:    entity.StrategyMeta{Name: "good", BaseSuccessRate: 0.1},
			handles: true,
			result:  entity.Ok("u", "good", "Title", longArticle()),
		},
	}

	engine := New(strategies, NewStatsStore(""), contentanalyzer.DefaultConfig())
	res := engine.Fetch(context.Background(), "https://example.com/a", nil)
	if !res.Success {
		t.Fatalf("expected success, got failure: %s", res.Error)
	}
	if res.Strategy != "good" {
		t.Errorf("expected 'good' strategy to win, got %q", res.Strategy)
	}
}

func TestEngine_Fetch_TruncatedContentFallsThrough(t *testing.T) {
	strategies := []strategy.Strategy{
		fakeStrategy{
			meta:    entity.StrategyMeta{Name: "paywalled"},
			handles: true,
			result:  entity.Ok("u", "paywalled", "", "subscribe to continue reading this"),
		},
		fakeStrategy{
			meta:    entity.StrategyMeta{Name: "clean"},
			handles: true,
			result:  entity.Ok("u", "clean", "Title", longArticle()),
		},
	}

	engine := New(strategies, NewStatsStore(""), contentanalyzer.DefaultConfig())
	res := engine.Fetch(context.Background(), "https://example.com/a", nil)
	if !res.Success || res.Strategy != "clean" {
		t.Fatalf("expected fallthrough to 'clean', got success=%v strategy=%q", res.Success, res.Strategy)
	}

	stat := engine.stats.Get("paywalled")
	if stat.Truncated != 1 {
		t.Errorf("expected paywalled strategy recorded as truncated, got %+v", stat)
	}
}

func TestEngine_Fetch_NoEligibleStrategy(t *testing.T) {
	engine := New(nil, NewStatsStore(""), contentanalyzer.DefaultConfig())
	res := engine.Fetch(context.Background(), "https://example.com/a", nil)
	if res.Success {
		t.Fatal("expected failure with no strategies registered")
	}
}

func TestEngine_Order_PreferredFirst(t *testing.T) {
	strategies := []strategy.Strategy{
		fakeStrategy{meta: entity.StrategyMeta{Name: "a", BaseSuccessRate: 0.9}, handles: true},
		fakeStrategy{meta: entity.StrategyMeta{Name: "b", BaseSuccessRate: 0.1}, handles: true},
	}
	engine := New(strategies, NewStatsStore(""), contentanalyzer.DefaultConfig())
	order := engine.order("https://example.com/a", []string{"b"})
	if len(order) != 2 || order[0].Meta().Name != "b" {
		t.Errorf("expected preferred strategy 'b' first, got order[0]=%q", order[0].Meta().Name)
	}
}

func TestEngine_Order_ExcludesIneligible(t *testing.T) {
	strategies := []strategy.Strategy{
		fakeStrategy{meta: entity.StrategyMeta{Name: "a"}, handles: false},
		fakeStrategy{meta: entity.StrategyMeta{Name: "b"}, handles: true},
	}
	engine := New(strategies, NewStatsStore(""), contentanalyzer.DefaultConfig())
	order := engine.order("https://example.com/a", nil)
	if len(order) != 1 || order[0].Meta().Name != "b" {
		t.Errorf("expected only 'b' eligible, got %d strategies", len(order))
	}
}
