// Package apierr provides structured API error types and HTTP status mapping
// compatible with the OpenAI error format.
package apierr

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// ErrorType constants.
const (
	TypeProviderError     = "provider_error"
	TypeRateLimitError    = "rate_limited"
	TypeInvalidRequest    = "invalid_request_error"
	TypeAuthenticationErr = "authentication_error"
	TypeServerError       = "server_error"

	TypeInsufficientFunds     = "insufficient_funds"
	TypeSettlementFailed      = "settlement_failed"
	TypeInvalidPayload        = "invalid_payload"
	TypeBudgetExceeded        = "budget_exceeded"
	TypeAllProvidersDown      = "all_providers_unavailable"
	TypeDedupOriginFailed     = "dedup_origin_failed"
	TypeProxyError            = "proxy_error"
)

// Code constants.
const (
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeInvalidAPIKey     = "invalid_api_key"
	CodeInternalError     = "internal_error"
	CodeProviderError     = "provider_error"
	CodeRequestTimeout    = "request_timeout"
	CodeNotImplemented    = "not_implemented"
	CodeInvalidRequest    = "invalid_request"

	CodeInsufficientFunds = "insufficient_funds"
	CodeSettlementFailed  = "settlement_failed"
	CodeInvalidPayload    = "invalid_payload"
	CodeBudgetExceeded    = "budget_exceeded"
	CodeAllProvidersDown  = "all_providers_unavailable"
	CodeDedupOriginFailed = "dedup_origin_failed"
)

// APIError is the structured error returned to clients.
type (
	APIError struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`

		// Payment-related fields, populated only for insufficient_funds.
		CurrentBalanceUSD float64 `json:"current_balance_usd,omitempty"`
		RequiredUSD       float64 `json:"required_usd,omitempty"`
		Wallet            string  `json:"wallet,omitempty"`
		Help              string  `json:"help,omitempty"`
	}
	envelope struct {
		Error APIError `json:"error"`
	}
)

// Write writes the error as JSON to the fasthttp response with the given HTTP status.
func Write(ctx *fasthttp.RequestCtx, status int, message, errType, code string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(envelope{Error: APIError{
		Message: message,
		Type:    errType,
		Code:    code,
	}})
	ctx.SetBody(body)
}

// WriteProviderError maps a provider HTTP status to the appropriate gateway status.
//
//	Provider 429  → 429 + Retry-After: 60
//	Provider 5xx  → 502
//	Default       → 502
//
// Timeouts are not mapped here; WriteTimeout writes the 504.
func WriteProviderError(ctx *fasthttp.RequestCtx, providerStatus int, msg string) {
	switch {
	case providerStatus == fasthttp.StatusTooManyRequests:
		ctx.Response.Header.Set("Retry-After", "60")
		Write(ctx, fasthttp.StatusTooManyRequests, msg, TypeRateLimitError, CodeRateLimitExceeded)
	case providerStatus >= 500 && providerStatus < 600:
		Write(ctx, fasthttp.StatusBadGateway, msg, TypeProviderError, CodeProviderError)
	default:
		Write(ctx, fasthttp.StatusBadGateway, msg, TypeProviderError, CodeProviderError)
	}
}

// WriteTimeout writes a 504 timeout error.
func WriteTimeout(ctx *fasthttp.RequestCtx) {
	Write(ctx, fasthttp.StatusGatewayTimeout, "provider request timed out", TypeProviderError, CodeRequestTimeout)
}

// WriteRateLimit writes a 429 rate limit error.
func WriteRateLimit(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Retry-After", "60")
	Write(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded", TypeRateLimitError, CodeRateLimitExceeded)
}

// WriteInsufficientFunds writes a 402 insufficient-funds error with balance detail.
func WriteInsufficientFunds(ctx *fasthttp.RequestCtx, currentUSD, requiredUSD float64, wallet string) {
	ctx.SetStatusCode(fasthttp.StatusPaymentRequired)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(envelope{Error: APIError{
		Message:           "wallet balance is insufficient for this request",
		Type:              TypeInsufficientFunds,
		Code:              CodeInsufficientFunds,
		CurrentBalanceUSD: currentUSD,
		RequiredUSD:       requiredUSD,
		Wallet:            wallet,
		Help:              "fund the wallet or switch to the free model",
	}})
	ctx.SetBody(body)
}

// WriteSettlementFailed writes a 402 settlement-failed error, transient by definition.
func WriteSettlementFailed(ctx *fasthttp.RequestCtx, msg string) {
	Write(ctx, fasthttp.StatusPaymentRequired, msg, TypeSettlementFailed, CodeSettlementFailed)
}

// WriteInvalidPayload writes a 402 invalid-payload (signature rejected) error.
func WriteInvalidPayload(ctx *fasthttp.RequestCtx, msg string) {
	Write(ctx, fasthttp.StatusPaymentRequired, msg, TypeInvalidPayload, CodeInvalidPayload)
}

// WriteBudgetExceeded writes a 402 budget-exceeded error.
func WriteBudgetExceeded(ctx *fasthttp.RequestCtx, msg string) {
	Write(ctx, fasthttp.StatusPaymentRequired, msg, TypeBudgetExceeded, CodeBudgetExceeded)
}

// WriteAllProvidersUnavailable writes a 503 when the fallback chain is exhausted.
func WriteAllProvidersUnavailable(ctx *fasthttp.RequestCtx, msg string) {
	Write(ctx, fasthttp.StatusServiceUnavailable, msg, TypeAllProvidersDown, CodeAllProvidersDown)
}

// WriteDedupOriginFailed writes the fixed 503 body dedup waiters receive when
// the originating request failed.
func WriteDedupOriginFailed(ctx *fasthttp.RequestCtx) {
	Write(ctx, fasthttp.StatusServiceUnavailable, "Original request failed, please retry", TypeDedupOriginFailed, "")
}

// WriteProxyError writes a 500 internal proxy error.
func WriteProxyError(ctx *fasthttp.RequestCtx, msg string) {
	Write(ctx, fasthttp.StatusInternalServerError, msg, TypeProxyError, CodeInternalError)
}

// DedupOriginFailedBody returns the fixed JSON body given to dedup waiters
// when the originating request failed, for use outside of a RequestCtx
// (e.g. when replaying a cached failure to a waiter channel).
func DedupOriginFailedBody() []byte {
	body, _ := json.Marshal(envelope{Error: APIError{
		Message: "Original request failed, please retry",
		Type:    TypeDedupOriginFailed,
	}})
	return body
}
