package models

import (
	"fmt"
	"time"
)

// MatchReason records which tier of the field matcher produced a mapping.
type MatchReason string

const (
	MatchExact        MatchReason = "exact"
	MatchFuzzyName    MatchReason = "fuzzy_name"
	MatchTypeCoercion MatchReason = "type_coercion"
)

// FieldMapping declares that a target field should be filled from a source
// field of the producing step's output, with a confidence in [0,1].
type FieldMapping struct {
	SourceField string      `json:"source_field"`
	TargetField string      `json:"target_field"`
	Confidence  float64     `json:"confidence"`
	Reason      MatchReason `json:"reason,omitempty"`
}

// CompatibilityResult is the verdict on whether one workflow's output can
// feed another's input. Compatible is true iff every required target field
// found a match; Score is the fraction of all target fields matched.
type CompatibilityResult struct {
	Compatible        bool           `json:"compatible"`
	Score             float64        `json:"score"`
	MatchedFields     []FieldMapping `json:"matched_fields"`
	UnmatchedRequired []string       `json:"unmatched_required,omitempty"`
}

// InputRef addresses the origin of a mapped input field: the id of the
// producing step and the name of its output field. Steps are always
// addressed by id, never by position, so reordering cannot corrupt wiring.
type InputRef struct {
	Source string `json:"source"`
	Field  string `json:"field"`
}

// PipelineStep is one workflow invocation in a pipeline. The id is issued
// before any mapping is computed so mappings can reference it durably.
type PipelineStep struct {
	ID           string              `json:"id"`
	WorkflowID   string              `json:"workflow_id"`
	Position     int                 `json:"position"`
	InputMapping map[string]InputRef `json:"input_mapping,omitempty"`
}

// ProposedPipeline is the output of composition: assembled and scored but
// not yet owned or persisted.
type ProposedPipeline struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Steps       []PipelineStep `json:"steps"`
	TotalPrice  int64          `json:"total_price"`
	Score       float64        `json:"score"`
	Reasoning   string         `json:"reasoning"`
}

// Pipeline is a persisted, owned, executable pipeline.
type Pipeline struct {
	ID           string         `json:"id"`
	OwnerAddress string         `json:"owner_address"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Steps        []PipelineStep `json:"steps"`
	TotalPrice   int64          `json:"total_price"`
	Score        float64        `json:"score"`
	Reasoning    string         `json:"reasoning"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ValidateSteps enforces the assembly contract: step ids unique, positions a
// contiguous 0-based sequence in slice order, and every input mapping
// referencing the id of a strictly earlier step. A violation is an assembly
// bug and fails loudly here rather than being tolerated at execution time.
func ValidateSteps(steps []PipelineStep) error {
	seen := make(map[string]int, len(steps))
	for i, step := range steps {
		if step.ID == "" {
			return fmt.Errorf("step at position %d has no id", i)
		}
		if _, dup := seen[step.ID]; dup {
			return fmt.Errorf("duplicate step id %s", step.ID)
		}
		if step.Position != i {
			return fmt.Errorf("step %s has position %d, want %d", step.ID, step.Position, i)
		}
		seen[step.ID] = i
	}
	for i, step := range steps {
		for field, ref := range step.InputMapping {
			src, ok := seen[ref.Source]
			if !ok {
				return fmt.Errorf("step %s maps %q from unknown step %s", step.ID, field, ref.Source)
			}
			if src >= i {
				return fmt.Errorf("step %s maps %q from step %s which does not precede it", step.ID, field, ref.Source)
			}
		}
	}
	return nil
}
