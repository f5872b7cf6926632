package proxy

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/nulpointcorp/llm-proxy/internal/modelregistry"
	"github.com/nulpointcorp/llm-proxy/internal/tier"
)

func TestIsRetryableStatus(t *testing.T) {
	cases := map[int]bool{
		http.StatusOK:                    false,
		http.StatusBadRequest:            true,
		http.StatusUnauthorized:          true,
		http.StatusForbidden:             true,
		http.StatusPaymentRequired:       false,
		http.StatusRequestEntityTooLarge: true,
		http.StatusTooManyRequests:       true,
		http.StatusInternalServerError:   true,
		http.StatusBadGateway:            true,
		http.StatusServiceUnavailable:    true,
		http.StatusGatewayTimeout:        true,
	}
	for status, want := range cases {
		if got := isRetryableStatus(status); got != want {
			t.Errorf("isRetryableStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestIsRetryableAttempt_BodyPatternPromotesNonRetryableStatus(t *testing.T) {
	if isRetryableAttempt(http.StatusNotFound, []byte(`{"error":{"message":"quota exceeded"}}`)) != true {
		t.Error("expected a provider-error body to promote a 404 to retryable")
	}
	if isRetryableAttempt(http.StatusNotFound, []byte(`{"error":{"message":"no such route"}}`)) != false {
		t.Error("expected a plain 404 with no provider-error body to stay non-retryable")
	}
	if isRetryableAttempt(http.StatusPaymentRequired, []byte(`{"error":{"message":"billing issue"}}`)) != false {
		t.Error("expected 402 to stay non-retryable even with a provider-error body")
	}
}

func TestCandidateChain_FiltersReordersAndCaps(t *testing.T) {
	table := modelregistry.ProfileTable{
		tier.Simple: {Primary: "openai/gpt-4.1-nano", Fallback: []string{"gemini/gemini-2.0-flash", "anthropic/claude-3.5-haiku"}},
	}
	cooldowns := newCooldownMap(time.Minute)
	cooldowns.MarkCooldown("openai/gpt-4.1-nano")

	chain := candidateChain(tier.Simple, table, 100, cooldowns, 2)
	if len(chain) != 2 {
		t.Fatalf("expected chain capped to 2, got %v", chain)
	}
	for _, m := range chain {
		if m == "openai/gpt-4.1-nano" {
			t.Errorf("cooled-down model should be pushed past the cap, got %v", chain)
		}
	}
}

func TestRunFallbackChain_SucceedsOnFirstCandidate(t *testing.T) {
	cooldowns := newCooldownMap(time.Minute)
	calls := 0
	res, err := runFallbackChain(context.Background(), []string{"model-a", "model-b"}, cooldowns, func(ctx context.Context, model string) attemptResult {
		calls++
		return attemptResult{Model: model, StatusCode: http.StatusOK, Body: []byte(`{}`)}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", calls)
	}
	if res.Model != "model-a" {
		t.Errorf("expected model-a to serve, got %s", res.Model)
	}
}

func TestRunFallbackChain_FallsThroughOnRetryableError(t *testing.T) {
	cooldowns := newCooldownMap(time.Minute)
	var attempted []string
	res, err := runFallbackChain(context.Background(), []string{"model-a", "model-b"}, cooldowns, func(ctx context.Context, model string) attemptResult {
		attempted = append(attempted, model)
		if model == "model-a" {
			return attemptResult{Model: model, StatusCode: http.StatusBadGateway}
		}
		return attemptResult{Model: model, StatusCode: http.StatusOK}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Model != "model-b" {
		t.Errorf("expected fallback to model-b, got %s", res.Model)
	}
	if len(attempted) != 2 {
		t.Errorf("expected 2 attempts, got %v", attempted)
	}
}

func TestRunFallbackChain_StopsOnNonRetryableError(t *testing.T) {
	cooldowns := newCooldownMap(time.Minute)
	calls := 0
	res, err := runFallbackChain(context.Background(), []string{"model-a", "model-b"}, cooldowns, func(ctx context.Context, model string) attemptResult {
		calls++
		return attemptResult{Model: model, StatusCode: http.StatusNotFound}
	})
	if err == nil {
		t.Fatal("expected error for non-retryable failure")
	}
	if calls != 1 {
		t.Errorf("expected fallback to stop after first non-retryable error, got %d calls", calls)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("expected last result preserved, got status %d", res.StatusCode)
	}
}

func TestRunFallbackChain_MarksCooldownOn429(t *testing.T) {
	cooldowns := newCooldownMap(time.Minute)
	_, _ = runFallbackChain(context.Background(), []string{"model-a", "model-b"}, cooldowns, func(ctx context.Context, model string) attemptResult {
		if model == "model-a" {
			return attemptResult{Model: model, StatusCode: http.StatusTooManyRequests}
		}
		return attemptResult{Model: model, StatusCode: http.StatusOK}
	})
	if !cooldowns.InCooldown("model-a") {
		t.Error("expected model-a to be marked in cooldown after 429")
	}
}

func TestRunFallbackChain_EmptyCandidates(t *testing.T) {
	cooldowns := newCooldownMap(time.Minute)
	_, err := runFallbackChain(context.Background(), nil, cooldowns, func(ctx context.Context, model string) attemptResult {
		t.Fatal("attempt should not be called with no candidates")
		return attemptResult{}
	})
	if err == nil {
		t.Fatal("expected error for empty candidate list")
	}
}
