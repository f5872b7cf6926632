package modelregistry

import (
	"testing"

	"github.com/nulpointcorp/llm-proxy/internal/tier"
)

func TestResolveAlias_Idempotent(t *testing.T) {
	cases := []string{"GPT-4.1-Mini", "blockrun/gpt-4.1-mini", "gpt-4.1-mini", "unknown-model"}
	for _, c := range cases {
		once := ResolveAlias(c)
		twice := ResolveAlias(once)
		if once != twice {
			t.Errorf("ResolveAlias not idempotent for %q: %q != %q", c, once, twice)
		}
	}
}

func TestResolveAlias_StripsBrandPrefix(t *testing.T) {
	if got := ResolveAlias("blockrun/gpt-4.1-mini"); got != "openai/gpt-4.1-mini" {
		t.Errorf("expected openai/gpt-4.1-mini, got %s", got)
	}
}

func TestIsProfileName(t *testing.T) {
	if name, ok := IsProfileName("blockrun/auto"); !ok || name != "auto" {
		t.Errorf("expected auto profile, got %q ok=%v", name, ok)
	}
	if _, ok := IsProfileName("gpt-4.1-mini"); ok {
		t.Error("gpt-4.1-mini should not be recognized as a profile")
	}
}

func TestSelectModel_PrimaryMatch(t *testing.T) {
	for name, table := range Profiles {
		for tr := tier.Simple; tr <= tier.Reasoning; tr++ {
			d := SelectModel(tr, 0.9, "rules", "test", table, 1000, 500, name)
			if d.ModelID != table[tr].Primary {
				t.Errorf("profile=%s tier=%s: got %s want %s", name, tr, d.ModelID, table[tr].Primary)
			}
		}
	}
}

func TestSelectModel_PremiumSavingsZero(t *testing.T) {
	d := SelectModel(tier.Complex, 0.9, "rules", "test", Profiles["premium"], 1000, 500, "premium")
	if d.Savings != 0 {
		t.Errorf("expected savings 0 under premium, got %f", d.Savings)
	}
}

func TestSelectModel_SavingsBounded(t *testing.T) {
	for name, table := range Profiles {
		for tr := tier.Simple; tr <= tier.Reasoning; tr++ {
			d := SelectModel(tr, 0.9, "rules", "test", table, 5000, 1000, name)
			if d.Savings < 0 || d.Savings > 1 {
				t.Errorf("profile=%s tier=%s: savings out of bounds: %f", name, tr, d.Savings)
			}
		}
	}
}

func TestGetFallbackChainFiltered_DegradesSafely(t *testing.T) {
	table := Profiles["auto"]
	chain := GetFallbackChainFiltered(tier.Reasoning, table, 100000000)
	if len(chain) == 0 {
		t.Error("filtered chain must never be empty")
	}
}

func TestGetFallbackChain_NeverExceedsFive(t *testing.T) {
	for _, table := range Profiles {
		for tr := tier.Simple; tr <= tier.Reasoning; tr++ {
			chain := GetFallbackChain(tr, table)
			if len(chain) > 5 {
				t.Errorf("fallback chain exceeds 5 entries: %v", chain)
			}
		}
	}
}
