package composer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"flowmarket/backend/internal/catalog"
	"flowmarket/backend/internal/logging"
	"flowmarket/backend/internal/schema"
	"flowmarket/backend/pkg/models"
)

// Composer plans pipelines against a workflow catalog.
type Composer struct {
	catalog catalog.Catalog
	scoring ScoringConfig
	logger  *logging.Logger
}

// New creates a Composer.
func New(cat catalog.Catalog, scoring ScoringConfig, logger *logging.Logger) *Composer {
	return &Composer{catalog: cat, scoring: scoring, logger: logger}
}

// AutoCompose plans a pipeline for a natural-language goal. A nil proposal
// with a nil error means composition failed because no capability had a
// usable provider; the caller should fall back to single-workflow execution.
// Classification itself never fails; only an empty candidate set does.
func (c *Composer) AutoCompose(ctx context.Context, goal string) (*models.ProposedPipeline, error) {
	capabilities := ClassifyGoal(goal)

	workflows, err := c.catalog.ListWorkflows(ctx, catalog.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	selected := SelectCandidates(capabilities, workflows)
	if len(selected) == 0 {
		c.logger.Info("no candidates for goal", "goal", goal, "capabilities", capabilities)
		return nil, nil
	}

	steps, pairScores, totalPrice := AssemblePipeline(selected)
	if err := models.ValidateSteps(steps); err != nil {
		return nil, fmt.Errorf("assembled invalid pipeline: %w", err)
	}

	score := ScorePlan(c.scoring, selected, pairScores, totalPrice)
	proposal := &models.ProposedPipeline{
		Name:        proposalName(goal),
		Description: "Automatically composed pipeline for: " + goal,
		Steps:       steps,
		TotalPrice:  totalPrice,
		Score:       score,
		Reasoning:   buildReasoning(goal, selected, pairScores, totalPrice),
	}
	c.logger.Info("composed pipeline",
		"goal", goal, "steps", len(steps), "score", score, "total_price", totalPrice)
	return proposal, nil
}

// CompatibilityReport is the probe result for an interactive builder: the
// pairwise verdict plus every candidate mapping ranked by confidence, below-
// threshold ones included so the UI can offer them as manual suggestions.
type CompatibilityReport struct {
	models.CompatibilityResult
	Suggestions []models.FieldMapping `json:"suggestions"`
}

// CheckWorkflowCompatibility probes whether source's output can feed
// target's input.
func (c *Composer) CheckWorkflowCompatibility(ctx context.Context, sourceID, targetID string) (*CompatibilityReport, error) {
	source, err := c.catalog.GetWorkflow(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("source workflow %s: %w", sourceID, err)
	}
	target, err := c.catalog.GetWorkflow(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("target workflow %s: %w", targetID, err)
	}

	result := schema.CheckCompatibility(source.OutputSchema, target.InputSchema)
	suggestions := append([]models.FieldMapping(nil), result.MatchedFields...)
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	return &CompatibilityReport{CompatibilityResult: result, Suggestions: suggestions}, nil
}

func proposalName(goal string) string {
	name := strings.TrimSpace(goal)
	if len(name) > 80 {
		name = name[:77] + "..."
	}
	return name
}

func buildReasoning(goal string, workflows []models.WorkflowDescriptor, pairScores []float64, totalPrice int64) string {
	names := make([]string, len(workflows))
	for i, w := range workflows {
		names[i] = w.Name
	}
	return fmt.Sprintf("Composed for %q: %s. Average schema compatibility %.0f%%. Total price %d.",
		goal, strings.Join(names, " -> "), meanScore(pairScores)*100, totalPrice)
}
