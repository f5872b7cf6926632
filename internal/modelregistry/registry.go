// Package modelregistry holds the model descriptor table, the alias map
// that redirects short or branded names to canonical model ids, and the
// per-profile tier tables the Proxy Core consults when routing a request.
//
// The layout mirrors internal/providers/provider.go's ModelAliases: large
// literal tables grouped by concern, with comment banners separating
// sections, rather than anything computed from an external source.
package modelregistry

import (
	"strings"
)

// Model is a single entry in the registry: a stable id plus pricing and
// capability metadata.
type Model struct {
	ID              string // "provider/name", e.g. "openai/gpt-4.1-mini"
	DisplayName     string
	Version         string
	InputPricePerM  float64 // USD per 1M input tokens
	OutputPricePerM float64 // USD per 1M output tokens
	ContextWindow   int     // tokens
	MaxOutputTokens int
	Reasoning       bool
	Vision          bool
	Agentic         bool
}

// BaselineModelID is the fixed premium reference model used to compute the
// savings ratio reported in a routing decision (spec.md §3, §4.2).
const BaselineModelID = "openai/gpt-4.1"

// Models is the single source of truth for model descriptors.
var Models = map[string]Model{
	// ─── Free tier ──────────────────────────────────────────────────────────
	"blockrun/free": {
		ID: "blockrun/free", DisplayName: "Blockrun Free", Version: "1",
		InputPricePerM: 0, OutputPricePerM: 0,
		ContextWindow: 32000, MaxOutputTokens: 2048,
	},

	// ─── OpenAI ─────────────────────────────────────────────────────────────
	"openai/gpt-4.1-nano": {
		ID: "openai/gpt-4.1-nano", DisplayName: "GPT-4.1 Nano", Version: "2025-04",
		InputPricePerM: 0.10, OutputPricePerM: 0.40,
		ContextWindow: 1000000, MaxOutputTokens: 32000,
	},
	"openai/gpt-4.1-mini": {
		ID: "openai/gpt-4.1-mini", DisplayName: "GPT-4.1 Mini", Version: "2025-04",
		InputPricePerM: 0.40, OutputPricePerM: 1.60,
		ContextWindow: 1000000, MaxOutputTokens: 32000, Vision: true,
	},
	"openai/gpt-4.1": {
		ID: "openai/gpt-4.1", DisplayName: "GPT-4.1", Version: "2025-04",
		InputPricePerM: 2.00, OutputPricePerM: 8.00,
		ContextWindow: 1000000, MaxOutputTokens: 32000, Vision: true, Agentic: true,
	},
	"openai/o4-mini": {
		ID: "openai/o4-mini", DisplayName: "o4-mini", Version: "2025-04",
		InputPricePerM: 1.10, OutputPricePerM: 4.40,
		ContextWindow: 200000, MaxOutputTokens: 100000, Reasoning: true,
	},

	// ─── Anthropic ──────────────────────────────────────────────────────────
	"anthropic/claude-3.5-haiku": {
		ID: "anthropic/claude-3.5-haiku", DisplayName: "Claude 3.5 Haiku", Version: "20241022",
		InputPricePerM: 0.80, OutputPricePerM: 4.00,
		ContextWindow: 200000, MaxOutputTokens: 8192,
	},
	"anthropic/claude-3.7-sonnet": {
		ID: "anthropic/claude-3.7-sonnet", DisplayName: "Claude 3.7 Sonnet", Version: "20250219",
		InputPricePerM: 3.00, OutputPricePerM: 15.00,
		ContextWindow: 200000, MaxOutputTokens: 64000, Vision: true, Agentic: true,
	},
	"anthropic/claude-3.7-sonnet-thinking": {
		ID: "anthropic/claude-3.7-sonnet-thinking", DisplayName: "Claude 3.7 Sonnet (Extended Thinking)", Version: "20250219",
		InputPricePerM: 3.00, OutputPricePerM: 15.00,
		ContextWindow: 200000, MaxOutputTokens: 64000, Reasoning: true, Vision: true,
	},

	// ─── Google Gemini ──────────────────────────────────────────────────────
	"gemini/gemini-2.0-flash": {
		ID: "gemini/gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash", Version: "2.0",
		InputPricePerM: 0.10, OutputPricePerM: 0.40,
		ContextWindow: 1000000, MaxOutputTokens: 8192, Vision: true,
	},
	"gemini/gemini-2.5-pro": {
		ID: "gemini/gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", Version: "2.5",
		InputPricePerM: 1.25, OutputPricePerM: 10.00,
		ContextWindow: 2000000, MaxOutputTokens: 65536, Reasoning: true, Vision: true, Agentic: true,
	},

	// ─── Mistral ────────────────────────────────────────────────────────────
	"mistral/mistral-small": {
		ID: "mistral/mistral-small", DisplayName: "Mistral Small", Version: "25.01",
		InputPricePerM: 0.20, OutputPricePerM: 0.60,
		ContextWindow: 128000, MaxOutputTokens: 8192,
	},
}

// ModelAliases maps short/branded names to canonical registry ids. Used by
// the Proxy Core to resolve the `model` field of an inbound request. The
// routing-profile keywords (free/eco/auto/premium) recognized before alias
// resolution in dispatch (spec.md §4.9 step 3) are matched by IsProfileName,
// not by this map; only "free" also appears here, as an alias.
var ModelAliases = map[string]string{
	// ─── Free ───────────────────────────────────────────────────────────────
	"free":          "blockrun/free",
	"blockrun/free": "blockrun/free",

	// ─── OpenAI ─────────────────────────────────────────────────────────────
	"gpt-4.1-nano":         "openai/gpt-4.1-nano",
	"openai/gpt-4.1-nano":  "openai/gpt-4.1-nano",
	"gpt-4.1-mini":         "openai/gpt-4.1-mini",
	"openai/gpt-4.1-mini":  "openai/gpt-4.1-mini",
	"gpt-4.1":              "openai/gpt-4.1",
	"openai/gpt-4.1":       "openai/gpt-4.1",
	"o4-mini":              "openai/o4-mini",
	"openai/o4-mini":       "openai/o4-mini",

	// ─── Anthropic ──────────────────────────────────────────────────────────
	"claude-3.5-haiku":                   "anthropic/claude-3.5-haiku",
	"anthropic/claude-3.5-haiku":         "anthropic/claude-3.5-haiku",
	"claude-3.7-sonnet":                  "anthropic/claude-3.7-sonnet",
	"anthropic/claude-3.7-sonnet":        "anthropic/claude-3.7-sonnet",
	"claude-3.7-sonnet-thinking":         "anthropic/claude-3.7-sonnet-thinking",
	"anthropic/claude-3.7-sonnet-thinking": "anthropic/claude-3.7-sonnet-thinking",

	// ─── Google Gemini ──────────────────────────────────────────────────────
	"gemini-2.0-flash":        "gemini/gemini-2.0-flash",
	"gemini/gemini-2.0-flash": "gemini/gemini-2.0-flash",
	"gemini-2.5-pro":          "gemini/gemini-2.5-pro",
	"gemini/gemini-2.5-pro":   "gemini/gemini-2.5-pro",

	// ─── Mistral ────────────────────────────────────────────────────────────
	"mistral-small":         "mistral/mistral-small",
	"mistral/mistral-small": "mistral/mistral-small",
}

// knownBrandPrefixes are stripped when a profile/alias lookup misses,
// mirroring internal/proxy/routing.go's fallback-default lookup pattern.
var knownBrandPrefixes = []string{"blockrun/", "openrouter/"}

// ResolveAlias normalizes and resolves a requested model name to a
// canonical registry id. Resolution is idempotent: ResolveAlias(ResolveAlias(x)) == ResolveAlias(x).
func ResolveAlias(name string) string {
	norm := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := ModelAliases[norm]; ok {
		return canonical
	}
	for _, prefix := range knownBrandPrefixes {
		if stripped, ok := strings.CutPrefix(norm, prefix); ok {
			if canonical, ok := ModelAliases[stripped]; ok {
				return canonical
			}
			if _, ok := Models[stripped]; ok {
				return stripped
			}
		}
	}
	if _, ok := Models[norm]; ok {
		return norm
	}
	return norm
}

// IsProfileName reports whether name (after lowercasing/trimming) names a
// routing profile rather than a model.
func IsProfileName(name string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.TrimPrefix(norm, "blockrun/")
	switch norm {
	case "free", "eco", "auto", "premium":
		return norm, true
	}
	return "", false
}

// Lookup returns the descriptor for a canonical model id.
func Lookup(id string) (Model, bool) {
	m, ok := Models[id]
	return m, ok
}

// ContextWindow returns the declared context window for id, or 0 if unknown.
func ContextWindow(id string) int {
	if m, ok := Models[id]; ok {
		return m.ContextWindow
	}
	return 0
}
