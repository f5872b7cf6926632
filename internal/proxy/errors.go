package proxy

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-proxy/pkg/apierr"
)

var (
	verificationFailedPattern = regexp.MustCompile(`(?i)Verification failed`)
	outOfGasPattern           = regexp.MustCompile(`(?i)out of gas`)
	balanceUSDPattern         = regexp.MustCompile(`(?i)balance[^\d]*(\d+(?:\.\d+)?)`)
	requiredUSDPattern        = regexp.MustCompile(`(?i)required[^\d]*(\d+(?:\.\d+)?)`)
)

// writePaymentError implements spec §4.9 step 17: before returning a
// payment-layer error to the client, classify the raw upstream error body
// into one of the payment error types so the client sees a structured,
// actionable error rather than a raw proxy passthrough.
func writePaymentError(ctx *fasthttp.RequestCtx, rawBody []byte, wallet string) {
	text := string(rawBody)

	if verificationFailedPattern.MatchString(text) {
		current := parseFloatMatch(balanceUSDPattern, text)
		required := parseFloatMatch(requiredUSDPattern, text)
		apierr.WriteInsufficientFunds(ctx, current, required, wallet)
		return
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(rawBody, &envelope)
	msg := envelope.Error.Message
	if msg == "" {
		msg = text
	}

	switch {
	case strings.Contains(strings.ToLower(msg), "signature"):
		apierr.WriteInvalidPayload(ctx, msg)
	case outOfGasPattern.MatchString(text):
		apierr.WriteSettlementFailed(ctx, msg+" (out of gas)")
	default:
		apierr.WriteSettlementFailed(ctx, msg)
	}
}

func parseFloatMatch(re *regexp.Regexp, text string) float64 {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	f, _ := strconv.ParseFloat(m[1], 64)
	return f
}
