// Package contentanalyzer decides whether extracted HTML is acceptable or
// whether it looks like a paywall / truncated page. It is a pure function
// over raw HTML plus a small configured phrase/selector vocabulary — it
// never performs I/O and must never panic on malformed input.
package contentanalyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"ingestengine/internal/utils/text"
)

// Config is the paywall/truncation vocabulary. config.Config.ContentAnalyzer
// builds it from environment settings; the strategy metadata YAML file can
// overlay the phrase and selector lists.
type Config struct {
	PaywallPhrases      []string
	PaywallSelectors    []string
	MinWordCount        int
	TitleRatioThreshold float64
}

// DefaultConfig returns the vocabulary used when no override is configured.
func DefaultConfig() Config {
	return Config{
		PaywallPhrases: []string{
			"subscribe to continue",
			"create a free account",
			"javascript required",
			"subscribe now",
			"already a subscriber",
		},
		PaywallSelectors: []string{
			"paywall", "subscription-wall", "premium-content",
			"data-paywall", "data-require-auth",
		},
		MinWordCount:        150,
		TitleRatioThreshold: 0.1,
	}
}

// Result is the verdict of analyzing one HTML document.
type Result struct {
	IsTruncated     bool
	IsLikelyPaywall bool
	Title           string
	WordCount       int
}

// Analyze never throws: unparseable input yields a Result with both flags
// false. Checks run in the order given by spec: phrases, selectors, title
// ratio, gate words, then word count — any hit is conclusive for the
// relevant flag but analysis keeps scanning every rule once.
func (c Config) Analyze(html string) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}
	}

	bodyText := strings.TrimSpace(doc.Text())
	lowerBody := strings.ToLower(bodyText)
	title := extractTitle(doc)

	res := Result{Title: title}

	for _, phrase := range c.PaywallPhrases {
		if strings.Contains(lowerBody, strings.ToLower(phrase)) {
			res.IsLikelyPaywall = true
			break
		}
	}

	if !res.IsLikelyPaywall {
		doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range []string{"class", "id", "data-paywall", "data-require-auth"} {
				val, _ := s.Attr(attr)
				lowerVal := strings.ToLower(val)
				for _, sel := range c.PaywallSelectors {
					if strings.Contains(lowerVal, strings.ToLower(sel)) {
						res.IsLikelyPaywall = true
						return false
					}
				}
			}
			return true
		})
	}

	if len(bodyText) > 0 {
		ratio := float64(len(title)) / float64(len(bodyText))
		if ratio > c.TitleRatioThreshold {
			res.IsTruncated = true
		}
	}

	if !res.IsLikelyPaywall {
		doc.Find("form").EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= 3 {
				return false
			}
			formText := strings.ToLower(s.Text())
			for _, gate := range []string{"login", "sign in", "subscribe", "register"} {
				if strings.Contains(formText, gate) {
					res.IsLikelyPaywall = true
					return false
				}
			}
			return true
		})
	}

	res.WordCount = wordCount(html, bodyText)
	if res.WordCount < c.MinWordCount {
		res.IsTruncated = true
	}

	return res
}

// wordCount prefers the readability-extracted main body; it falls back to
// splitting the raw visible text when extraction fails.
func wordCount(html, fallbackText string) int {
	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err == nil && article.TextContent != "" {
		return countWords(article.TextContent)
	}
	return countWords(fallbackText)
}

func countWords(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		// Only reached when s is empty or whitespace-only. Text in a
		// script without spaces (e.g. CJK) is a single field and counts
		// as one word above.
		return text.CountRunes(s) / 4
	}
	return len(fields)
}

// extractTitle prefers <title>, then the first <h1>, else "Untitled".
func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return "Untitled"
}
