package modelregistry

import "github.com/nulpointcorp/llm-proxy/internal/tier"

// TierTable maps a single tier to its primary model and ordered fallbacks.
type TierTable struct {
	Primary  string
	Fallback []string
}

// ProfileTable is a complete tier→{primary,fallback[]} mapping for one
// routing profile.
type ProfileTable map[tier.Tier]TierTable

// Profiles holds the per-profile tier tables. The "free" profile has no
// tier table — it is a flat rewrite to config.RoutingConfig.FreeModel,
// applied before classification ever runs (spec.md §4.9 step 4).
var Profiles = map[string]ProfileTable{
	"eco": {
		tier.Simple: {Primary: "openai/gpt-4.1-nano", Fallback: []string{"gemini/gemini-2.0-flash", "anthropic/claude-3.5-haiku"}},
		tier.Medium: {Primary: "gemini/gemini-2.0-flash", Fallback: []string{"openai/gpt-4.1-nano", "mistral/mistral-small"}},
		tier.Complex: {Primary: "anthropic/claude-3.5-haiku", Fallback: []string{"openai/gpt-4.1-mini", "gemini/gemini-2.0-flash"}},
		tier.Reasoning: {Primary: "openai/o4-mini", Fallback: []string{"anthropic/claude-3.7-sonnet-thinking"}},
	},
	"auto": {
		tier.Simple:    {Primary: "openai/gpt-4.1-nano", Fallback: []string{"gemini/gemini-2.0-flash", "mistral/mistral-small"}},
		tier.Medium:    {Primary: "openai/gpt-4.1-mini", Fallback: []string{"anthropic/claude-3.5-haiku", "gemini/gemini-2.0-flash"}},
		tier.Complex:   {Primary: "anthropic/claude-3.7-sonnet", Fallback: []string{"openai/gpt-4.1", "gemini/gemini-2.5-pro"}},
		tier.Reasoning: {Primary: "openai/o4-mini", Fallback: []string{"anthropic/claude-3.7-sonnet-thinking", "gemini/gemini-2.5-pro"}},
	},
	// agentic is an implicit sub-table of "auto", selected by the Proxy
	// Core when the classifier's agentic sub-score ≥ 0.5 (spec.md §4.1,
	// §9 open question: no explicit "agentic" profile name is supported).
	"agentic": {
		tier.Simple:    {Primary: "openai/gpt-4.1-mini", Fallback: []string{"anthropic/claude-3.7-sonnet"}},
		tier.Medium:    {Primary: "anthropic/claude-3.7-sonnet", Fallback: []string{"openai/gpt-4.1", "gemini/gemini-2.5-pro"}},
		tier.Complex:   {Primary: "openai/gpt-4.1", Fallback: []string{"anthropic/claude-3.7-sonnet", "gemini/gemini-2.5-pro"}},
		tier.Reasoning: {Primary: "gemini/gemini-2.5-pro", Fallback: []string{"anthropic/claude-3.7-sonnet-thinking", "openai/o4-mini"}},
	},
	"premium": {
		tier.Simple:    {Primary: "anthropic/claude-3.7-sonnet", Fallback: []string{"openai/gpt-4.1"}},
		tier.Medium:    {Primary: "anthropic/claude-3.7-sonnet", Fallback: []string{"openai/gpt-4.1", "gemini/gemini-2.5-pro"}},
		tier.Complex:   {Primary: "openai/gpt-4.1", Fallback: []string{"anthropic/claude-3.7-sonnet", "gemini/gemini-2.5-pro"}},
		tier.Reasoning: {Primary: "gemini/gemini-2.5-pro", Fallback: []string{"anthropic/claude-3.7-sonnet-thinking", "openai/o4-mini"}},
	},
}
