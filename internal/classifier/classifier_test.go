package classifier

import (
	"strings"
	"testing"

	"github.com/nulpointcorp/llm-proxy/internal/config"
	"github.com/nulpointcorp/llm-proxy/internal/tier"
)

func defaultRoutingConfig() config.RoutingConfig {
	return config.RoutingConfig{
		SigmoidSteepness:    12,
		ConfidenceThreshold: 0.7,
		TierBoundaries:      [3]float64{0.0, 0.3, 0.5},
	}
}

func TestClassify_SimpleQuestion(t *testing.T) {
	d := Classify(Input{Prompt: "What is the capital of France?"}, defaultRoutingConfig())
	if d.Tier != tier.Simple {
		t.Errorf("expected SIMPLE, got %s (score=%f)", d.Tier, d.Score)
	}
}

func TestClassify_ReasoningDirectOverride(t *testing.T) {
	d := Classify(Input{Prompt: "Prove step by step that sqrt(2) is irrational. Derive the contradiction."}, defaultRoutingConfig())
	if d.Tier != tier.Reasoning {
		t.Errorf("expected REASONING, got %s", d.Tier)
	}
	if d.Confidence < 0.85 {
		t.Errorf("expected confidence >= 0.85, got %f", d.Confidence)
	}
	if d.Ambiguous {
		t.Error("direct override must not be ambiguous")
	}
}

func TestClassify_Deterministic(t *testing.T) {
	in := Input{Prompt: "Write a function to reverse a linked list in Go, handle the empty list case."}
	cfg := defaultRoutingConfig()
	a := Classify(in, cfg)
	b := Classify(in, cfg)
	if a.Score != b.Score || a.Tier != b.Tier || a.Confidence != b.Confidence {
		t.Error("classify is not deterministic for identical input")
	}
}

func TestClassify_EmptyPromptIsSimple(t *testing.T) {
	d := Classify(Input{}, defaultRoutingConfig())
	if d.Tier != tier.Simple {
		t.Errorf("expected SIMPLE for empty input, got %s", d.Tier)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestClassify_MultilingualCodeKeyword(t *testing.T) {
	d := Classify(Input{Prompt: "请帮我写一个函数 实现一个算法 处理异常"}, defaultRoutingConfig())
	foundSignal := false
	for _, s := range d.Signals {
		if strings.HasPrefix(s, "code (") {
			foundSignal = true
		}
	}
	if !foundSignal {
		t.Errorf("expected a code signal for a code-bearing multilingual prompt, got %v", d.Signals)
	}
}
