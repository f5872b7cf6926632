package proxy

import "testing"

func TestIsDegradedResponse_OverloadPlaceholder(t *testing.T) {
	content := "The AI service is temporarily overloaded, please try again later."
	if !isDegradedResponse(content, []byte(`{"choices":[]}`)) {
		t.Error("expected overload placeholder to be detected as degraded")
	}
}

func TestIsDegradedResponse_RepetitiveLoopPatterns(t *testing.T) {
	content := "the boxed is the response to everything. the response is the text you asked for."
	if !isDegradedResponse(content, nil) {
		t.Error("expected two repetitive-loop pattern hits to be detected as degraded")
	}
}

func TestIsDegradedResponse_SingleLoopPatternNotEnough(t *testing.T) {
	content := "the boxed is the response, nothing else follows."
	if isDegradedResponse(content, nil) {
		t.Error("a single loop-pattern hit should not trip degraded detection")
	}
}

func TestIsDegradedResponse_RepetitiveLines(t *testing.T) {
	line := "I am unable to help with that request right now."
	content := ""
	for i := 0; i < 4; i++ {
		content += line + "\n"
	}
	content += line + "\n" + line + "\n" + line + "\nsomething different\nanother different line\n"
	if !isDegradedResponse(content, nil) {
		t.Error("expected repetitive-line heuristic to trip")
	}
}

func TestIsDegradedResponse_NormalContentNotDegraded(t *testing.T) {
	content := "Here is a concise answer to your question about Go channels."
	if isDegradedResponse(content, []byte(`{"choices":[{"message":{"content":"ok"}}]}`)) {
		t.Error("normal content should not be flagged as degraded")
	}
}

func TestIsDegradedResponse_ProviderErrorPattern(t *testing.T) {
	raw := []byte(`{"error":{"message":"You have exceeded your current quota"}}`)
	if !isDegradedResponse("", raw) {
		t.Error("expected quota error pattern in raw body to be detected")
	}
}

func TestHasRepetitiveLines_FewLinesNotDegraded(t *testing.T) {
	content := "line one\nline two\nline three"
	if hasRepetitiveLines(content) {
		t.Error("fewer than 8 lines should never trip the heuristic")
	}
}

func TestHasRepetitiveLines_HighUniqueRatioNotDegraded(t *testing.T) {
	content := "a\nb\nc\nd\ne\nf\ng\nh\n"
	if hasRepetitiveLines(content) {
		t.Error("all-unique lines should not trip the heuristic")
	}
}
