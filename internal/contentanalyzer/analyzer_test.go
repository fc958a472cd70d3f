package contentanalyzer

import (
	"strings"
	"testing"
)

func TestAnalyze_Paywall_Phrase(t *testing.T) {
	html := `<html><head><title>Paid Article</title></head><body>` +
		strings.Repeat("word ", 200) + `Please subscribe to continue reading this story.</body></html>`

	res := DefaultConfig().Analyze(html)
	if !res.IsLikelyPaywall {
		t.Errorf("expected paywall detection")
	}
}

func TestAnalyze_ShortContent_Truncated(t *testing.T) {
	html := `<html><head><title>Short</title></head><body>Too short.</body></html>`

	res := DefaultConfig().Analyze(html)
	if !res.IsTruncated {
		t.Errorf("expected truncated for short content")
	}
}

func TestAnalyze_HealthyArticle(t *testing.T) {
	body := strings.Repeat("this is a perfectly normal sentence about the news today. ", 40)
	html := `<html><head><title>Normal Article</title></head><body>` + body + `</body></html>`

	res := DefaultConfig().Analyze(html)
	if res.IsTruncated {
		t.Errorf("did not expect truncation for long body, word count %d", res.WordCount)
	}
	if res.IsLikelyPaywall {
		t.Errorf("did not expect paywall detection")
	}
}

func TestAnalyze_InvalidInput_NeverPanics(t *testing.T) {
	res := DefaultConfig().Analyze("")
	if res.IsTruncated == false && res.IsLikelyPaywall == false {
		return
	}
}

func TestAnalyze_TitleExtraction_FallsBackToH1(t *testing.T) {
	html := `<html><body><h1>Headline Here</h1><p>` + strings.Repeat("content ", 200) + `</p></body></html>`
	res := DefaultConfig().Analyze(html)
	if res.Title != "Headline Here" {
		t.Errorf("expected title from h1, got %q", res.Title)
	}
}

func TestAnalyze_NoTitleAtAll_Untitled(t *testing.T) {
	html := `<html><body><p>` + strings.Repeat("content ", 200) + `</p></body></html>`
	res := DefaultConfig().Analyze(html)
	if res.Title != "Untitled" {
		t.Errorf("expected Untitled, got %q", res.Title)
	}
}
