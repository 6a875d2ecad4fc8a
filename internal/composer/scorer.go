package composer

import (
	"math"

	"flowmarket/backend/pkg/models"
)

// ScoringConfig holds the plan scoring weights and the price-efficiency
// ceiling. The defaults are inherited constants with no documented
// derivation; they are configuration, not something to re-derive.
type ScoringConfig struct {
	CompatibilityWeight float64
	PriceWeight         float64
	ReliabilityWeight   float64
	// ReferenceMaxPrice is one whole currency unit in the smallest
	// denomination prices are expressed in (1 USDC = 1e6 micro-USDC).
	ReferenceMaxPrice int64
}

// DefaultScoringConfig returns the standard 0.4/0.3/0.3 weighting against a
// one-USDC price ceiling.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		CompatibilityWeight: 0.4,
		PriceWeight:         0.3,
		ReliabilityWeight:   0.3,
		ReferenceMaxPrice:   1_000_000,
	}
}

// ScorePlan combines mean pairwise compatibility, price efficiency, and
// relative reliability into one composite score, rounded to two decimals.
func ScorePlan(cfg ScoringConfig, workflows []models.WorkflowDescriptor, pairScores []float64, totalPrice int64) float64 {
	avgCompatibility := meanScore(pairScores)

	priceEfficiency := 1 - float64(totalPrice)/float64(cfg.ReferenceMaxPrice)
	if priceEfficiency < 0 {
		priceEfficiency = 0
	}

	reliability := 0.0
	if len(workflows) > 0 {
		var maxExecutions int64 = 1 // guard against an all-zero catalog
		for _, w := range workflows {
			if w.TotalExecutions > maxExecutions {
				maxExecutions = w.TotalExecutions
			}
		}
		for _, w := range workflows {
			reliability += float64(w.TotalExecutions) / float64(maxExecutions)
		}
		reliability /= float64(len(workflows))
	}

	score := cfg.CompatibilityWeight*avgCompatibility +
		cfg.PriceWeight*priceEfficiency +
		cfg.ReliabilityWeight*reliability
	return math.Round(score*100) / 100
}

// meanScore averages pairwise scores; a single-step plan has no pairs and
// counts as perfectly compatible.
func meanScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 1
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
