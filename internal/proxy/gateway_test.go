package proxy

import (
	"encoding/json"
	"testing"

	"github.com/nulpointcorp/llm-proxy/internal/classifier"
	"github.com/nulpointcorp/llm-proxy/internal/config"
	"github.com/nulpointcorp/llm-proxy/internal/tier"
)

func testConfig() *config.Config {
	return &config.Config{
		Routing: config.RoutingConfig{
			MaxTokensForceComplex: 100000,
			FreeModel:             "blockrun/free",
		},
	}
}

func TestExtractPromptAndSystem(t *testing.T) {
	messages := []chatMessage{
		{Role: "system", Content: json.RawMessage(`"be concise"`)},
		{Role: "user", Content: json.RawMessage(`"first question"`)},
		{Role: "assistant", Content: json.RawMessage(`"first answer"`)},
		{Role: "user", Content: json.RawMessage(`"second question"`)},
	}
	prompt, system := extractPromptAndSystem(messages)
	if prompt != "second question" {
		t.Errorf("expected last user message, got %q", prompt)
	}
	if system != "be concise" {
		t.Errorf("expected system message, got %q", system)
	}
}

func TestContentToString_PlainString(t *testing.T) {
	if got := contentToString(json.RawMessage(`"hello"`)); got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestContentToString_NonStringFallsBackToRaw(t *testing.T) {
	raw := json.RawMessage(`[{"type":"text","text":"hi"}]`)
	if got := contentToString(raw); got != string(raw) {
		t.Errorf("got %q, want raw passthrough", got)
	}
}

func TestContentToString_Empty(t *testing.T) {
	if got := contentToString(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestEstimateCostMicroUSD_KnownModel(t *testing.T) {
	micro := estimateCostMicroUSD("openai/gpt-4.1-nano", 1_000_000, 1_000_000)
	if micro.Int64() <= 100 {
		t.Errorf("expected cost above the floor for a large request, got %d", micro.Int64())
	}
}

func TestEstimateCostMicroUSD_FloorForSmallRequest(t *testing.T) {
	micro := estimateCostMicroUSD("openai/gpt-4.1-nano", 1, 1)
	if micro.Int64() != 100 {
		t.Errorf("expected 100 micro-USD floor, got %d", micro.Int64())
	}
}

func TestEstimateCostMicroUSD_UnknownModelUsesFloor(t *testing.T) {
	micro := estimateCostMicroUSD("nonexistent/model", 1_000_000, 1_000_000)
	if micro.Int64() != 100 {
		t.Errorf("expected floor for unknown model, got %d", micro.Int64())
	}
}

func TestTableName_AgenticOverride(t *testing.T) {
	got := tableName("auto", classifier.Decision{AgenticScore: 0.8})
	if got != "agentic" {
		t.Errorf("expected agentic table for high agentic score, got %q", got)
	}
}

func TestTableName_DefaultsToAutoWhenEmpty(t *testing.T) {
	if got := tableName("", classifier.Decision{}); got != "auto" {
		t.Errorf("got %q, want auto", got)
	}
}

func TestTableName_PassesThroughExplicitProfile(t *testing.T) {
	if got := tableName("coding", classifier.Decision{AgenticScore: 0.9}); got != "coding" {
		t.Errorf("expected non-auto profile to pass through unchanged, got %q", got)
	}
}

func TestNormalizeMessages_TruncatesKeepingSystemMessages(t *testing.T) {
	messages := []chatMessage{{Role: "system", Content: json.RawMessage(`"sys"`)}}
	for i := 0; i < 250; i++ {
		messages = append(messages, chatMessage{Role: "user", Content: json.RawMessage(`"msg"`)})
	}

	out := normalizeMessages(messages, "openai/gpt-4.1-nano")
	if len(out) > maxMessages+1 {
		t.Fatalf("expected truncation to roughly maxMessages, got %d", len(out))
	}
	if out[0].Role != "system" {
		t.Errorf("expected system message preserved at head, got role %q", out[0].Role)
	}
}

func TestNormalizeMessages_SanitizesToolCallID(t *testing.T) {
	messages := []chatMessage{{Role: "tool", ToolCallID: "call:weird/id!"}}
	out := normalizeMessages(messages, "openai/gpt-4.1-nano")
	for _, c := range out[0].ToolCallID {
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-') {
			t.Fatalf("expected sanitized tool_call_id, got %q", out[0].ToolCallID)
		}
	}
}

func TestNormalizeMessages_GeminiInsertsPlaceholderWhenLeadingAssistant(t *testing.T) {
	messages := []chatMessage{
		{Role: "system", Content: json.RawMessage(`"sys"`)},
		{Role: "assistant", Content: json.RawMessage(`"hi there"`)},
	}
	out := normalizeMessages(messages, "gemini/gemini-2.0-flash")
	if len(out) != 3 {
		t.Fatalf("expected a placeholder user message inserted, got %d messages", len(out))
	}
	if out[1].Role != "user" {
		t.Errorf("expected inserted placeholder to be a user message, got role %q", out[1].Role)
	}
}

func TestNormalizeMessages_GeminiNoInsertionWhenLeadingUser(t *testing.T) {
	messages := []chatMessage{
		{Role: "system", Content: json.RawMessage(`"sys"`)},
		{Role: "user", Content: json.RawMessage(`"hi"`)},
	}
	out := normalizeMessages(messages, "gemini/gemini-2.0-flash")
	if len(out) != 2 {
		t.Errorf("expected no placeholder inserted when conversation already opens with a user message, got %d", len(out))
	}
}

func TestNormalizeMessages_ReasoningContentInjectedForReasoningModel(t *testing.T) {
	messages := []chatMessage{
		{Role: "assistant", ToolCalls: json.RawMessage(`[{"id":"1"}]`)},
	}
	out := normalizeMessages(messages, "openai/o4-mini")
	if out[0].ReasoningContent == nil {
		t.Fatal("expected reasoning_content to be injected for a reasoning model with tool calls")
	}
}

func TestNormalizeMessages_ReasoningContentNotInjectedForNonReasoningModel(t *testing.T) {
	messages := []chatMessage{
		{Role: "assistant", ToolCalls: json.RawMessage(`[{"id":"1"}]`)},
	}
	out := normalizeMessages(messages, "openai/gpt-4.1-nano")
	if out[0].ReasoningContent != nil {
		t.Error("did not expect reasoning_content injection for a non-reasoning model")
	}
}

func TestNormalizeBody_RewritesModelAndDisablesStream(t *testing.T) {
	raw := []byte(`{"model":"gpt-4.1","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	out := normalizeBody(raw, "openai/gpt-4.1-nano", []chatMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}})

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(out, &obj); err != nil {
		t.Fatalf("normalizeBody produced invalid JSON: %v", err)
	}
	var model string
	json.Unmarshal(obj["model"], &model)
	if model != "openai/gpt-4.1-nano" {
		t.Errorf("expected model rewritten, got %q", model)
	}
	if string(obj["stream"]) != "false" {
		t.Errorf("expected stream disabled, got %s", obj["stream"])
	}
}

func TestNormalizeBody_MalformedInputPassesThrough(t *testing.T) {
	raw := []byte(`not json`)
	out := normalizeBody(raw, "openai/gpt-4.1-nano", nil)
	if string(out) != string(raw) {
		t.Errorf("expected malformed body to pass through unchanged, got %s", out)
	}
}

func TestApplyOverrides_ForcesComplexOnLargeInput(t *testing.T) {
	g := &Gateway{cfg: testConfig()}
	huge := make([]byte, 0, 500000)
	for i := 0; i < 500000; i++ {
		huge = append(huge, 'a')
	}
	d := g.applyOverrides(classifier.Decision{Tier: tier.Simple}, "", string(huge))
	if d.Tier != tier.Complex {
		t.Errorf("expected force-COMPLEX override for oversized input, got %v", d.Tier)
	}
}

func TestApplyOverrides_StructuredOutputRaisesFloor(t *testing.T) {
	g := &Gateway{cfg: testConfig()}
	d := g.applyOverrides(classifier.Decision{Tier: tier.Simple}, "respond with valid JSON matching this schema", "hi")
	if d.Tier == tier.Simple {
		t.Errorf("expected structured-output tier floor to raise above SIMPLE, got %v", d.Tier)
	}
}

func TestApplyOverrides_LeavesNormalDecisionUnchanged(t *testing.T) {
	g := &Gateway{cfg: testConfig()}
	d := g.applyOverrides(classifier.Decision{Tier: tier.Medium, Confidence: 0.7}, "be nice", "what's 2+2")
	if d.Tier != tier.Medium || d.Confidence != 0.7 {
		t.Errorf("expected decision unchanged, got %+v", d)
	}
}
