package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ingestengine/internal/domain/entity"
)

func TestDiscordNotifier_buildEmbedPayload(t *testing.T) {
	t.Run("builds an embed from an escalated failure", func(t *testing.T) {
		notifier := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: "https://discord.com/api/webhooks/test", Timeout: 10 * time.Second})

		firstFailed := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
		failure := &entity.NuclearFailure{
			ID:            "n1",
			Kind:          entity.FailureSearch,
			OriginalURL:   "https://example.com/article/1",
			Title:         "Test Article",
			LatestError:   "no alternative found",
			RetryCount:    12,
			FirstFailedAt: firstFailed,
		}

		payload := notifier.buildEmbedPayload(failure)
		if len(payload.Embeds) != 1 {
			t.Fatalf("expected 1 embed, got %d", len(payload.Embeds))
		}
		embed := payload.Embeds[0]

		if embed.Title != failure.Title {
			t.Errorf("expected title %q, got %q", failure.Title, embed.Title)
		}
		if embed.Description != failure.LatestError {
			t.Errorf("expected description %q, got %q", failure.LatestError, embed.Description)
		}
		if embed.URL != failure.OriginalURL {
			t.Errorf("expected url %q, got %q", failure.OriginalURL, embed.URL)
		}
		if embed.Color != discordRedColor {
			t.Errorf("expected alert color, got %d", embed.Color)
		}
		if !strings.Contains(embed.Footer.Text, "12 retries") {
			t.Errorf("expected footer to mention retry count, got %q", embed.Footer.Text)
		}
		if embed.Timestamp != firstFailed.Format(time.RFC3339) {
			t.Errorf("expected timestamp %q, got %q", firstFailed.Format(time.RFC3339), embed.Timestamp)
		}
	})

	t.Run("truncates a long title", func(t *testing.T) {
		notifier := NewDiscordNotifier(DiscordConfig{WebhookURL: "https://discord.com/api/webhooks/test", Timeout: 10 * time.Second})
		failure := &entity.NuclearFailure{OriginalURL: "https://example.com", Title: strings.Repeat("a", 300)}

		payload := notifier.buildEmbedPayload(failure)
		if len(payload.Embeds[0].Title) != maxTitleLength {
			t.Errorf("expected title truncated to %d chars, got %d", maxTitleLength, len(payload.Embeds[0].Title))
		}
	})
}

func TestDiscordNotifier_NotifyEscalation_Success(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var payload DiscordWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	failure := &entity.NuclearFailure{ID: "n1", OriginalURL: "https://example.com/article/1", Title: "t"}

	if err := notifier.NotifyEscalation(context.Background(), failure); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly 1 webhook call, got %d", calls)
	}
}

func TestDiscordNotifier_NotifyEscalation_ServerErrorRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	failure := &entity.NuclearFailure{ID: "n1", OriginalURL: "https://example.com/article/1"}

	if err := notifier.NotifyEscalation(context.Background(), failure); err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected a 5xx to be retried once, got %d calls", calls)
	}
}

func TestExtractRetryAfter_FallsBackToDefault(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	got := extractRetryAfter(resp, []byte(`{}`))
	if got != 5*time.Second {
		t.Errorf("expected default 5s retry-after, got %v", got)
	}
}
