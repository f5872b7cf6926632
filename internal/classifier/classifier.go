// Package classifier scores a chat-completion prompt across fifteen
// weighted dimensions and maps the result to a complexity tier with a
// calibrated confidence, the way internal/providers/provider.go groups
// large literal tables by concern rather than computing anything from an
// external model.
package classifier

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/nulpointcorp/llm-proxy/internal/config"
	"github.com/nulpointcorp/llm-proxy/internal/tier"
)

// Token-length bucket thresholds for the tokenCount dimension. Not exposed
// as configuration — spec.md §6 only lists keyword lists/weights/tier
// boundaries/sigmoid steepness/confidence threshold/default tiers as
// recognized options, so these two stay classifier-internal constants.
const (
	simpleTokenThreshold  = 100
	complexTokenThreshold = 500
)

// dimension weights, summing to ≈1.0 per spec.md §4.1.
const (
	weightTokenCount          = 0.08
	weightCodePresence        = 0.15
	weightReasoningMarkers    = 0.18
	weightTechnicalTerms      = 0.10
	weightCreativeMarkers     = 0.05
	weightSimpleIndicators    = 0.02
	weightMultiStepPatterns   = 0.12
	weightQuestionComplexity  = 0.05
	weightImperativeVerbs     = 0.03
	weightConstraintCount     = 0.04
	weightOutputFormat        = 0.03
	weightReferenceComplexity = 0.02
	weightNegationComplexity  = 0.01
	weightDomainSpecificity   = 0.02
	weightAgenticTask         = 0.04
)

var multiStepPattern = regexp.MustCompile(`(?i)(first.{0,20}then|step\s+\d+|^\s*\d+[.)]\s)`)

// Input is what the classifier needs to produce a Decision.
type Input struct {
	Prompt       string // last message with role "user"
	SystemPrompt string // first message with role "system"
}

// Decision is the classifier's output: a tier (or ambiguous), a calibrated
// confidence, and the signals that drove the decision.
type Decision struct {
	Score        float64
	Tier         tier.Tier
	Ambiguous    bool
	Confidence   float64
	Method       string
	Signals      []string
	Reasoning    string
	AgenticScore float64
}

// EstimateTokens approximates token count as ceil(byteLen/4), per spec.md §4.1.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// Classify scores the input and maps it to a tier. Classification is total
// and deterministic: the same input always yields the same (tier, score,
// signals), with no dependency on map iteration order or wall-clock time.
func Classify(in Input, cfg config.RoutingConfig) Decision {
	combined := strings.ToLower(in.SystemPrompt + " " + in.Prompt)
	userLower := strings.ToLower(in.Prompt)
	estTokens := EstimateTokens(in.SystemPrompt + in.Prompt)

	var score float64
	var signals []string

	addSignal := func(label string) {
		signals = append(signals, label)
	}

	// tokenCount
	switch {
	case estTokens < simpleTokenThreshold:
		score += weightTokenCount * -1
		addSignal("short prompt")
	case estTokens > complexTokenThreshold:
		score += weightTokenCount * 1
		addSignal("long prompt")
	}

	// codePresence
	if v, hits := tieredKeywordScore(combined, codeKeywords, 1, 3, 0.5, 1.0); v != 0 {
		score += weightCodePresence * v
		addSignal(fmt.Sprintf("code (%s)", joinSample(hits)))
	}

	// reasoningMarkers — user text only
	reasoningHits := countHits(userLower, reasoningMarkerKeywords)
	reasoningScore := 0.0
	switch {
	case reasoningHits >= 2:
		reasoningScore = 1.0
	case reasoningHits >= 1:
		reasoningScore = 0.7
	}
	if reasoningScore != 0 {
		score += weightReasoningMarkers * reasoningScore
		addSignal("reasoning markers")
	}

	// technicalTerms: ≥2 → +0.5, ≥4 → +1
	if v, hits := tieredKeywordScore(combined, technicalTermKeywords, 2, 4, 0.5, 1.0); v != 0 {
		score += weightTechnicalTerms * v
		addSignal(fmt.Sprintf("technical terms (%s)", joinSample(hits)))
	}

	// creativeMarkers
	if v, hits := tieredKeywordScore(combined, creativeMarkerKeywords, 1, 2, 0.5, 0.7); v != 0 {
		score += weightCreativeMarkers * v
		addSignal(fmt.Sprintf("creative (%s)", joinSample(hits)))
	}

	// simpleIndicators
	if hits := matchedKeywords(combined, simpleIndicatorKeywords); len(hits) > 0 {
		score += weightSimpleIndicators * -1
		addSignal("simple phrasing")
	}

	// multiStepPatterns
	if multiStepPattern.MatchString(in.Prompt) {
		score += weightMultiStepPatterns * 0.5
		addSignal("multi-step instructions")
	}

	// questionComplexity
	if strings.Count(in.Prompt, "?") > 3 {
		score += weightQuestionComplexity * 0.5
		addSignal("many questions")
	}

	// imperativeVerbs: ≥1 → 0.3, ≥3 → 0.5
	if v, hits := tieredKeywordScore(combined, imperativeVerbKeywords, 1, 3, 0.3, 0.5); v != 0 {
		score += weightImperativeVerbs * v
		addSignal(fmt.Sprintf("imperative (%s)", joinSample(hits)))
	}

	// constraintCount: ≥1 → 0.3, ≥3 → 0.7
	if v, hits := tieredKeywordScore(combined, constraintKeywords, 1, 3, 0.3, 0.7); v != 0 {
		score += weightConstraintCount * v
		addSignal(fmt.Sprintf("constraints (%s)", joinSample(hits)))
	}

	// outputFormat: ≥1 → 0.4, ≥2 → 0.7
	if v, hits := tieredKeywordScore(combined, outputFormatKeywords, 1, 2, 0.4, 0.7); v != 0 {
		score += weightOutputFormat * v
		addSignal(fmt.Sprintf("output format (%s)", joinSample(hits)))
	}

	// referenceComplexity: ≥1 → 0.3, ≥2 → 0.5
	if v, _ := tieredKeywordScore(combined, referenceKeywords, 1, 2, 0.3, 0.5); v != 0 {
		score += weightReferenceComplexity * v
		addSignal("references prior context")
	}

	// negationComplexity: ≥2 → 0.3, ≥3 → 0.5
	if v, hits := tieredKeywordScore(combined, negationKeywords, 2, 3, 0.3, 0.5); v != 0 {
		score += weightNegationComplexity * v
		addSignal(fmt.Sprintf("negations (%d)", len(hits)))
	}

	// domainSpecificity: ≥1 → 0.5, ≥2 → 0.8
	if v, hits := tieredKeywordScore(combined, domainSpecificKeywords, 1, 2, 0.5, 0.8); v != 0 {
		score += weightDomainSpecificity * v
		addSignal(fmt.Sprintf("domain-specific (%s)", joinSample(hits)))
	}

	// agenticTask: ≥1 → 0.2, ≥3 → 0.6, ≥4 → 1
	agenticHits := countHits(combined, agenticTaskKeywords)
	agenticScore := 0.0
	switch {
	case agenticHits >= 4:
		agenticScore = 1.0
	case agenticHits >= 3:
		agenticScore = 0.6
	case agenticHits >= 1:
		agenticScore = 0.2
	}
	if agenticScore != 0 {
		score += weightAgenticTask * agenticScore
		addSignal("agentic task")
	}

	b1, b2, b3 := cfg.TierBoundaries[0], cfg.TierBoundaries[1], cfg.TierBoundaries[2]
	k := cfg.SigmoidSteepness
	if k == 0 {
		k = 12
	}
	threshold := cfg.ConfidenceThreshold
	if threshold == 0 {
		threshold = 0.7
	}

	var t tier.Tier
	var dist float64
	switch {
	case score < b1:
		t = tier.Simple
		dist = b1 - score
	case score < b2:
		t = tier.Medium
		dist = math.Min(score-b1, b2-score)
	case score < b3:
		t = tier.Complex
		dist = math.Min(score-b2, b3-score)
	default:
		t = tier.Reasoning
		dist = score - b3
	}

	confidence := sigmoid(k * dist)
	ambiguous := confidence < threshold

	// Direct REASONING override: ≥2 reasoning markers in user text forces
	// REASONING regardless of the weighted score's bucket.
	if reasoningHits >= 2 {
		t = tier.Reasoning
		ambiguous = false
		confidence = math.Max(sigmoid(k*math.Max(score, 0.3)), 0.85)
	}

	reasoning := fmt.Sprintf("score=%.3f tier=%s signals=[%s]", score, t, strings.Join(signals, ", "))

	return Decision{
		Score:        score,
		Tier:         t,
		Ambiguous:    ambiguous,
		Confidence:   confidence,
		Method:       "rules",
		Signals:      signals,
		Reasoning:    reasoning,
		AgenticScore: agenticScore,
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// countHits returns the number of distinct keywords present in text.
func countHits(text string, keywords []string) int {
	return len(matchedKeywords(text, keywords))
}

func matchedKeywords(text string, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

// tieredKeywordScore returns (value, matched) for a two-tier keyword
// dimension: hit-count ≥ highN → highVal, ≥ lowN → lowVal, else 0.
func tieredKeywordScore(text string, keywords []string, lowN, highN int, lowVal, highVal float64) (float64, []string) {
	hits := matchedKeywords(text, keywords)
	switch {
	case len(hits) >= highN:
		return highVal, hits
	case len(hits) >= lowN:
		return lowVal, hits
	default:
		return 0, hits
	}
}

func joinSample(items []string) string {
	if len(items) > 3 {
		items = items[:3]
	}
	return strings.Join(items, ", ")
}
