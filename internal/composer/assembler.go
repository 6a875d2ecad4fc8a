package composer

import (
	"github.com/google/uuid"

	"flowmarket/backend/internal/schema"
	"flowmarket/backend/pkg/models"
)

// MappingThreshold is the minimum confidence at which a field match is
// materialized into an executable mapping. Matches below it remain in
// compatibility results for diagnostics but must never drive execution.
const MappingThreshold = 0.5

// AssemblePipeline wires the selected workflows into an ordered step chain.
// Every step id is issued before any mapping is computed, so mappings
// address the producing step by durable identity rather than by position.
// Returns the steps, the pairwise compatibility scores in chain order, and
// the total price (a plain sum; one charge per step).
func AssemblePipeline(workflows []models.WorkflowDescriptor) ([]models.PipelineStep, []float64, int64) {
	steps := make([]models.PipelineStep, len(workflows))
	var totalPrice int64
	for i, w := range workflows {
		steps[i] = models.PipelineStep{
			ID:         uuid.New().String(),
			WorkflowID: w.ID,
			Position:   i,
		}
		totalPrice += w.Price
	}

	var pairScores []float64
	for i := 0; i+1 < len(workflows); i++ {
		result := schema.CheckCompatibility(workflows[i].OutputSchema, workflows[i+1].InputSchema)
		pairScores = append(pairScores, result.Score)
		for _, m := range result.MatchedFields {
			if m.Confidence < MappingThreshold {
				continue
			}
			if steps[i+1].InputMapping == nil {
				steps[i+1].InputMapping = make(map[string]models.InputRef)
			}
			steps[i+1].InputMapping[m.TargetField] = models.InputRef{
				Source: steps[i].ID,
				Field:  m.SourceField,
			}
		}
	}

	return steps, pairScores, totalPrice
}
