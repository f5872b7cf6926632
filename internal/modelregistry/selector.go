package modelregistry

import (
	"github.com/nulpointcorp/llm-proxy/internal/tier"
)

// Decision is the output of SelectModel: the chosen model plus its cost
// estimate relative to the fixed premium reference model.
type Decision struct {
	ModelID       string
	Tier          tier.Tier
	Confidence    float64
	Method        string
	Reasoning     string
	EstimatedCost float64
	BaselineCost  float64
	Savings       float64
}

// SelectModel implements spec.md §4.2's selectModel: look up the tier's
// primary model, estimate its cost, compare against the fixed baseline
// model, and report a savings ratio.
func SelectModel(
	t tier.Tier,
	confidence float64,
	method, reasoning string,
	table ProfileTable,
	estInputTokens, maxOutputTokens int,
	profile string,
) Decision {
	row := table[t]
	modelID := row.Primary

	cost := estimateCost(modelID, estInputTokens, maxOutputTokens)
	baseline := estimateCost(BaselineModelID, estInputTokens, maxOutputTokens)

	var savings float64
	if profile != "premium" {
		if baseline > 0 {
			savings = (baseline - cost) / baseline
			if savings < 0 {
				savings = 0
			}
		}
	}

	return Decision{
		ModelID:       modelID,
		Tier:          t,
		Confidence:    confidence,
		Method:        method,
		Reasoning:     reasoning,
		EstimatedCost: cost,
		BaselineCost:  baseline,
		Savings:       savings,
	}
}

func estimateCost(modelID string, estInputTokens, maxOutputTokens int) float64 {
	m, ok := Lookup(modelID)
	if !ok {
		return 0
	}
	return (float64(estInputTokens)*m.InputPricePerM + float64(maxOutputTokens)*m.OutputPricePerM) / 1e6
}

// GetFallbackChain returns [primary, ...fallback] in declared order.
func GetFallbackChain(t tier.Tier, table ProfileTable) []string {
	row := table[t]
	chain := make([]string, 0, len(row.Fallback)+1)
	if row.Primary != "" {
		chain = append(chain, row.Primary)
	}
	chain = append(chain, row.Fallback...)
	return chain
}

// GetFallbackChainFiltered keeps only models whose declared context window
// is at least 1.1x the estimated total tokens; if filtering would empty the
// list, the unfiltered chain is returned instead (degrade safely).
func GetFallbackChainFiltered(t tier.Tier, table ProfileTable, estTotalTokens int) []string {
	chain := GetFallbackChain(t, table)
	minWindow := int(1.1 * float64(estTotalTokens))

	filtered := make([]string, 0, len(chain))
	for _, id := range chain {
		if ContextWindow(id) >= minWindow {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 {
		return chain
	}
	return filtered
}
