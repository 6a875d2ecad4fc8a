package execution

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"flowmarket/backend/internal/logging"
	"flowmarket/backend/internal/metrics"
	"flowmarket/backend/internal/schema"
	"flowmarket/backend/pkg/models"
)

// WorkflowSource resolves step workflow ids into descriptors.
type WorkflowSource interface {
	GetWorkflow(ctx context.Context, id string) (*models.WorkflowDescriptor, error)
}

// ExecutionStore is the slice of the repository the engine persists through.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, execution *models.PipelineExecution) error
	UpdateExecution(ctx context.Context, execution *models.PipelineExecution) error
}

// Engine executes pipelines step by step in position order. Steps never run
// concurrently within one pipeline, since a later step's input may depend on
// an earlier step's output. Any number of pipelines may execute concurrently;
// each call owns its execution record exclusively.
type Engine struct {
	workflows WorkflowSource
	invoker   Invoker
	store     ExecutionStore
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewEngine creates an execution engine with a per-execution wall-clock
// timeout.
func NewEngine(workflows WorkflowSource, invoker Invoker, store ExecutionStore, timeout time.Duration, m *metrics.Metrics, logger *logging.Logger) *Engine {
	return &Engine{
		workflows: workflows,
		invoker:   invoker,
		store:     store,
		timeout:   timeout,
		metrics:   m,
		logger:    logger,
	}
}

// Execute runs the pipeline with best-effort semantics: a failing step is
// recorded and execution continues, so independent downstream steps still
// run. On timeout or caller cancellation the remaining steps are marked
// failed without being invoked; already-recorded results are never
// retracted. The returned execution is terminal.
func (e *Engine) Execute(ctx context.Context, pipeline *models.Pipeline, triggerInput map[string]any) (*models.PipelineExecution, error) {
	if err := models.ValidateSteps(pipeline.Steps); err != nil {
		return nil, fmt.Errorf("pipeline %s failed validation: %w", pipeline.ID, err)
	}

	execution := &models.PipelineExecution{
		ID:         uuid.New().String(),
		PipelineID: pipeline.ID,
		Status:     models.ExecutionRunning,
		StartedAt:  time.Now(),
	}
	if err := e.store.CreateExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("create execution record: %w", err)
	}
	e.metrics.ExecutionStarted(ctx)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	steps := make([]models.PipelineStep, len(pipeline.Steps))
	copy(steps, pipeline.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })

	outputs := make(map[string]map[string]any, len(steps))
	start := time.Now()
	for _, step := range steps {
		result := e.runStep(runCtx, step, outputs, triggerInput)
		execution.StepResults = append(execution.StepResults, result)
		if result.Success {
			outputs[step.ID] = result.Output
		}
		// Mid-flight persistence is best-effort and must survive the run
		// context expiring.
		e.persist(execution)
	}

	e.finalize(execution, steps, outputs, start)
	e.persist(execution)
	e.metrics.ExecutionFinished(context.Background(), string(execution.Status), time.Since(start).Seconds())
	e.logger.Info("pipeline execution finished",
		"pipeline_id", pipeline.ID, "execution_id", execution.ID,
		"status", execution.Status, "duration_ms", execution.DurationMs)
	return execution, nil
}

func (e *Engine) runStep(ctx context.Context, step models.PipelineStep, outputs map[string]map[string]any, triggerInput map[string]any) models.PipelineStepResult {
	result := models.PipelineStepResult{StepID: step.ID, WorkflowID: step.WorkflowID}

	// A step that never got to start still gets a failed result; the
	// execution record accounts for every step.
	if err := ctx.Err(); err != nil {
		result.Error = notStartedReason(err)
		return result
	}

	workflow, err := e.workflows.GetWorkflow(ctx, step.WorkflowID)
	if err != nil {
		result.Error = fmt.Sprintf("resolve workflow: %v", err)
		return result
	}

	input := resolveInput(step, workflow, outputs, triggerInput)

	stepStart := time.Now()
	invocation := e.invoker.Invoke(ctx, workflow, input)
	result.DurationMs = time.Since(stepStart).Milliseconds()
	if !invocation.Success {
		result.Error = invocation.Error
		e.metrics.StepFailed(context.Background())
		e.logger.Warn("pipeline step failed",
			"step_id", step.ID, "workflow_id", step.WorkflowID, "error", invocation.Error)
		return result
	}
	result.Success = true
	result.Output = invocation.Output
	return result
}

// resolveInput builds a step's input payload. The first step starts from the
// trigger input; every step then overlays its mapped fields, looked up by
// the producing step's id. A missing upstream result or missing output
// field leaves the target field unset; it never aborts the step.
func resolveInput(step models.PipelineStep, workflow *models.WorkflowDescriptor, outputs map[string]map[string]any, triggerInput map[string]any) map[string]any {
	input := make(map[string]any)
	if step.Position == 0 {
		for k, v := range triggerInput {
			input[k] = v
		}
	}
	for targetField, ref := range step.InputMapping {
		sourceOutput, ok := outputs[ref.Source]
		if !ok {
			continue
		}
		value, ok := sourceOutput[ref.Field]
		if !ok {
			continue
		}
		if targetType, ok := workflow.InputSchema.TypeOf(targetField); ok {
			value = schema.Coerce(value, schema.ValueType(value), targetType)
		}
		input[targetField] = value
	}
	return input
}

func (e *Engine) finalize(execution *models.PipelineExecution, steps []models.PipelineStep, outputs map[string]map[string]any, start time.Time) {
	succeeded := 0
	for _, r := range execution.StepResults {
		if r.Success {
			succeeded++
		}
	}
	switch {
	case succeeded == len(execution.StepResults):
		execution.Status = models.ExecutionCompleted
	case succeeded == 0:
		execution.Status = models.ExecutionFailed
	default:
		execution.Status = models.ExecutionPartial
	}
	if len(steps) > 0 {
		if out, ok := outputs[steps[len(steps)-1].ID]; ok {
			execution.FinalOutput = out
		}
	}
	execution.DurationMs = time.Since(start).Milliseconds()
	now := time.Now()
	execution.CompletedAt = &now
}

// persist updates the stored record outside the run context so a timed-out
// execution still lands in the database.
func (e *Engine) persist(execution *models.PipelineExecution) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.UpdateExecution(ctx, execution); err != nil {
		e.logger.Error("persist execution", "execution_id", execution.ID, "error", err)
	}
}

func notStartedReason(err error) string {
	if err == context.Canceled {
		return "execution canceled before step started"
	}
	return "execution timed out before step started"
}
