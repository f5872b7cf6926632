package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nulpointcorp/llm-proxy/internal/modelregistry"
	"github.com/nulpointcorp/llm-proxy/internal/tier"
)

// attemptResult carries the outcome of one fallback-chain attempt.
type attemptResult struct {
	Model      string
	StatusCode int
	Body       []byte
	Headers    http.Header
	Err        error
}

// candidateChain builds the ordered list of models to try for a request,
// implementing spec §4.9 step 14: start from the tier's fallback chain
// (context-window filtered), push any rate-limited model to the tail via
// the cooldown map, and cap at maxFallbackAttempts.
func candidateChain(t tier.Tier, table modelregistry.ProfileTable, estTotalTokens int, cooldowns *cooldownMap, maxFallbackAttempts int) []string {
	chain := modelregistry.GetFallbackChainFiltered(t, table, estTotalTokens)
	chain = cooldowns.Reorder(chain)
	if maxFallbackAttempts > 0 && len(chain) > maxFallbackAttempts {
		chain = chain[:maxFallbackAttempts]
	}
	return chain
}

// isRetryableStatus reports whether a provider HTTP status should trigger a
// fallback to the next candidate rather than aborting immediately, per
// spec §4.9 step 14d: 400/401/402/403/413/429/500/502/503/504 are all
// provider errors. 402 is the one exception — it is handled by the
// payment-error path instead, since a payment failure on one model is
// resolved by re-fetching payment params, not by trying a different model.
func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusPaymentRequired:
		return false
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusRequestEntityTooLarge, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return status >= 500
	}
}

// isRetryableAttempt extends isRetryableStatus with spec §4.9 step 14d's
// body-regex classification: a non-2xx response whose body matches a known
// provider-error signature (billing, quota, capacity, ...) is retryable even
// when its status code alone would not be. 402 is excluded, since it always
// goes through the payment-error path rather than the fallback chain.
func isRetryableAttempt(status int, body []byte) bool {
	if status == http.StatusPaymentRequired {
		return false
	}
	if isRetryableStatus(status) {
		return true
	}
	return matchesProviderErrorPattern(string(body))
}

// runFallbackChain walks candidates in order, invoking attempt for each,
// until one succeeds (2xx, non-degraded), a non-retryable failure stops the
// walk, or the chain is exhausted; every outcome other than success returns
// an error alongside the last result. On a 429 it marks the model in
// cooldown before moving to the next candidate. It implements spec §4.9
// step 14's retry/fallback loop; degraded-response detection (step 15) is
// applied inside the caller-supplied attempt function, on each attempt.
func runFallbackChain(
	ctx context.Context,
	candidates []string,
	cooldowns *cooldownMap,
	attempt func(ctx context.Context, model string) attemptResult,
) (attemptResult, error) {
	if len(candidates) == 0 {
		return attemptResult{}, fmt.Errorf("fallback: no candidate models available")
	}

	var last attemptResult
	for _, model := range candidates {
		select {
		case <-ctx.Done():
			return attemptResult{}, ctx.Err()
		default:
		}

		res := attempt(ctx, model)
		last = res

		if res.Err != nil {
			continue
		}

		if res.StatusCode == http.StatusTooManyRequests {
			cooldowns.MarkCooldown(model)
			continue
		}

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return res, nil
		}

		if !isRetryableAttempt(res.StatusCode, res.Body) {
			return res, fmt.Errorf("fallback: non-retryable status %d from %s", res.StatusCode, model)
		}
		// retryable failure — try next candidate
	}

	if last.StatusCode == 0 && last.Err == nil {
		last.Err = fmt.Errorf("fallback: all %d candidate(s) failed", len(candidates))
	}
	return last, fmt.Errorf("fallback: exhausted %d candidate(s), last status %d", len(candidates), last.StatusCode)
}

// defaultCooldown is applied to a model after a 429 response (spec §4.9
// step 14e).
const defaultCooldown = 60 * time.Second
