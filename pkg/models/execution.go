package models

import "time"

// ExecutionStatus is the lifecycle state of a pipeline execution. Running is
// the only non-terminal state; there are no retries at this layer.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionPartial   ExecutionStatus = "partial"
	ExecutionFailed    ExecutionStatus = "failed"
)

// PipelineStepResult records the outcome of one step invocation. Results are
// appended in execution order and never retracted.
type PipelineStepResult struct {
	StepID     string         `json:"step_id"`
	WorkflowID string         `json:"workflow_id"`
	Success    bool           `json:"success"`
	Output     map[string]any `json:"output,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// PipelineExecution is the record of one end-to-end pipeline run. It is
// owned by a single execution engine call; nothing else mutates it.
type PipelineExecution struct {
	ID          string               `json:"execution_id"`
	PipelineID  string               `json:"pipeline_id"`
	Status      ExecutionStatus      `json:"status"`
	StepResults []PipelineStepResult `json:"step_results"`
	FinalOutput map[string]any       `json:"final_output,omitempty"`
	DurationMs  int64                `json:"duration_ms"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}
