package nuclear

import (
	"sort"
	"testing"
)

func TestURLVariations_SchemeAndWWWToggle(t *testing.T) {
	variants := urlVariations("https://www.example.com/story/")
	sort.Strings(variants)

	want := map[string]bool{
		"http://www.example.com/story/": true,
		"https://example.com/story/":    true,
		"https://www.example.com/story": true,
	}
	if len(variants) != len(want) {
		t.Fatalf("expected %d variants, got %d: %v", len(want), len(variants), variants)
	}
	for _, v := range variants {
		if !want[v] {
			t.Errorf("unexpected variant %q", v)
		}
	}
}

func TestURLVariations_StripsAMP(t *testing.T) {
	variants := urlVariations("https://news.example.com/amp/story")
	found := false
	for _, v := range variants {
		if v == "https://news.example.com/story" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an amp-stripped variant among %v", variants)
	}
}

func TestURLVariations_InvalidURLReturnsNil(t *testing.T) {
	if v := urlVariations("://not a url"); v != nil {
		t.Errorf("expected nil for unparseable url, got %v", v)
	}
}
