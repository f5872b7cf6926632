package proxy

import (
	"regexp"
	"strings"
)

// providerErrorPatterns match provider-side error text embedded in an
// otherwise-200 response body, used both for degraded-response detection
// and for deciding whether a failure is retryable (spec §4.9 step 14/15).
var providerErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)billing`),
	regexp.MustCompile(`(?i)insufficient.*balance`),
	regexp.MustCompile(`(?i)credits`),
	regexp.MustCompile(`(?i)quota`),
	regexp.MustCompile(`(?i)rate.?limit`),
	regexp.MustCompile(`(?i)model.*unavailable`),
	regexp.MustCompile(`(?i)service.*unavailable`),
	regexp.MustCompile(`(?i)capacity`),
	regexp.MustCompile(`(?i)overloaded`),
	regexp.MustCompile(`(?i)temporarily.*unavailable`),
	regexp.MustCompile(`(?i)request too large`),
	regexp.MustCompile(`(?i)payload too large`),
}

// repetitiveLoopPatterns catch known degenerate-output signatures some
// models fall into under load.
var repetitiveLoopPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)the boxed is the response`),
	regexp.MustCompile(`(?i)the response is the text`),
}

const overloadPlaceholder = "AI service is temporarily overloaded"

// matchesProviderErrorPattern reports whether text contains any known
// provider-error signature.
func matchesProviderErrorPattern(text string) bool {
	for _, re := range providerErrorPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// isDegradedResponse implements spec §4.9 step 15: a nominally-200 response
// is treated as a provider error when its content betrays overload,
// repetitive-loop degeneration, or an embedded error object.
func isDegradedResponse(assistantContent string, rawBody []byte) bool {
	if strings.Contains(assistantContent, overloadPlaceholder) {
		return true
	}

	loopHits := 0
	for _, re := range repetitiveLoopPatterns {
		if re.MatchString(assistantContent) {
			loopHits++
		}
	}
	if loopHits >= 2 {
		return true
	}
	if hasRepetitiveLines(assistantContent) {
		return true
	}

	return matchesProviderErrorPattern(string(rawBody))
}

// hasRepetitiveLines reports the ≥8-lines / max-repeat≥3 / unique-ratio≤0.45
// degeneration heuristic from spec §4.9 step 15.
func hasRepetitiveLines(content string) bool {
	rawLines := strings.Split(content, "\n")
	lines := make([]string, 0, len(rawLines))
	for _, l := range rawLines {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) < 8 {
		return false
	}

	counts := make(map[string]int, len(lines))
	maxRepeat := 0
	for _, l := range lines {
		counts[l]++
		if counts[l] > maxRepeat {
			maxRepeat = counts[l]
		}
	}
	uniqueRatio := float64(len(counts)) / float64(len(lines))

	return maxRepeat >= 3 && uniqueRatio <= 0.45
}
