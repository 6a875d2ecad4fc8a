package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowmarket/backend/internal/logging"
	"flowmarket/backend/internal/repository"
	"flowmarket/backend/pkg/models"
)

type fakeSource struct {
	workflows map[string]*models.WorkflowDescriptor
}

func (f *fakeSource) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDescriptor, error) {
	if w, ok := f.workflows[id]; ok {
		return w, nil
	}
	return nil, repository.ErrNotFound
}

type fakeInvoker struct {
	fail   map[string]bool
	out    map[string]map[string]any
	inputs map[string]map[string]any
}

func (f *fakeInvoker) Invoke(ctx context.Context, workflow *models.WorkflowDescriptor, input map[string]any) *InvocationResult {
	f.inputs[workflow.ID] = input
	if f.fail[workflow.ID] {
		return &InvocationResult{Error: "upstream returned status 500"}
	}
	return &InvocationResult{Success: true, Output: f.out[workflow.ID]}
}

type memStore struct {
	mu      sync.Mutex
	created int
	updated int
}

func (m *memStore) CreateExecution(ctx context.Context, e *models.PipelineExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	return nil
}

func (m *memStore) UpdateExecution(ctx context.Context, e *models.PipelineExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated++
	return nil
}

func numberSchema(fields ...string) models.Schema {
	s := models.Schema{}
	for _, f := range fields {
		s.Properties = append(s.Properties, models.SchemaField{Name: f, Type: models.FieldNumber})
	}
	return s
}

// threeStepFixture wires A -> B -> C where C maps inputs from both A and B.
func threeStepFixture() (*models.Pipeline, *fakeSource, *fakeInvoker) {
	source := &fakeSource{workflows: map[string]*models.WorkflowDescriptor{
		"wf-a": {ID: "wf-a", Name: "A", OutputSchema: numberSchema("price")},
		"wf-b": {ID: "wf-b", Name: "B", InputSchema: numberSchema("price")},
		"wf-c": {ID: "wf-c", Name: "C", InputSchema: numberSchema("value", "rate")},
	}}
	steps := []models.PipelineStep{
		{ID: "step-a", WorkflowID: "wf-a", Position: 0},
		{ID: "step-b", WorkflowID: "wf-b", Position: 1, InputMapping: map[string]models.InputRef{
			"price": {Source: "step-a", Field: "price"},
		}},
		{ID: "step-c", WorkflowID: "wf-c", Position: 2, InputMapping: map[string]models.InputRef{
			"value": {Source: "step-a", Field: "price"},
			"rate":  {Source: "step-b", Field: "rate"},
		}},
	}
	pipeline := &models.Pipeline{ID: "pipe-1", Steps: steps}
	invoker := &fakeInvoker{
		fail:   map[string]bool{},
		inputs: map[string]map[string]any{},
		out: map[string]map[string]any{
			"wf-a": {"price": 42.5},
			"wf-b": {"rate": 1.25},
			"wf-c": {"done": true},
		},
	}
	return pipeline, source, invoker
}

func newTestEngine(source *fakeSource, invoker *fakeInvoker) (*Engine, *memStore) {
	store := &memStore{}
	engine := NewEngine(source, invoker, store, 30*time.Second, nil, logging.NewLogger("error"))
	return engine, store
}

func TestExecuteAllStepsSucceed(t *testing.T) {
	pipeline, source, invoker := threeStepFixture()
	engine, store := newTestEngine(source, invoker)

	execution, err := engine.Execute(context.Background(), pipeline, map[string]any{"symbol": "ETH"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	require.Len(t, execution.StepResults, 3)
	assert.Equal(t, map[string]any{"done": true}, execution.FinalOutput)
	assert.NotNil(t, execution.CompletedAt)

	// Trigger input reaches only the first step; mapped fields flow onward.
	assert.Equal(t, "ETH", invoker.inputs["wf-a"]["symbol"])
	assert.Equal(t, 42.5, invoker.inputs["wf-b"]["price"])
	assert.Equal(t, 42.5, invoker.inputs["wf-c"]["value"])
	assert.Equal(t, 1.25, invoker.inputs["wf-c"]["rate"])

	assert.Equal(t, 1, store.created)
	assert.GreaterOrEqual(t, store.updated, 3)
}

func TestExecuteMiddleStepFailureIsPartial(t *testing.T) {
	pipeline, source, invoker := threeStepFixture()
	invoker.fail["wf-b"] = true
	engine, _ := newTestEngine(source, invoker)

	execution, err := engine.Execute(context.Background(), pipeline, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionPartial, execution.Status)
	require.Len(t, execution.StepResults, 3)
	assert.True(t, execution.StepResults[0].Success)
	assert.False(t, execution.StepResults[1].Success)
	assert.NotEmpty(t, execution.StepResults[1].Error)
	assert.True(t, execution.StepResults[2].Success, "step 3 still runs after step 2 fails")

	// Step 3's mapping from step 1 resolves normally; the one from the
	// failed step 2 is simply left unset.
	assert.Equal(t, 42.5, invoker.inputs["wf-c"]["value"])
	_, hasRate := invoker.inputs["wf-c"]["rate"]
	assert.False(t, hasRate)

	assert.Equal(t, map[string]any{"done": true}, execution.FinalOutput)
}

func TestExecuteEveryStepFails(t *testing.T) {
	pipeline, source, invoker := threeStepFixture()
	invoker.fail["wf-a"] = true
	invoker.fail["wf-b"] = true
	invoker.fail["wf-c"] = true
	engine, _ := newTestEngine(source, invoker)

	execution, err := engine.Execute(context.Background(), pipeline, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionFailed, execution.Status)
	require.Len(t, execution.StepResults, 3)
	assert.Nil(t, execution.FinalOutput)
}

func TestExecuteLastStepFailureLeavesNoFinalOutput(t *testing.T) {
	pipeline, source, invoker := threeStepFixture()
	invoker.fail["wf-c"] = true
	engine, _ := newTestEngine(source, invoker)

	execution, err := engine.Execute(context.Background(), pipeline, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionPartial, execution.Status)
	assert.Nil(t, execution.FinalOutput)
}

func TestExecuteCancellationMarksRemainingStepsFailed(t *testing.T) {
	pipeline, source, invoker := threeStepFixture()
	engine, _ := newTestEngine(source, invoker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	execution, err := engine.Execute(ctx, pipeline, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionFailed, execution.Status)
	require.Len(t, execution.StepResults, 3, "every step gets a result even when never started")
	for _, r := range execution.StepResults {
		assert.False(t, r.Success)
		assert.Contains(t, r.Error, "before step started")
	}
	assert.Empty(t, invoker.inputs, "no step was invoked")
}

func TestExecuteRejectsInvalidSteps(t *testing.T) {
	pipeline, source, invoker := threeStepFixture()
	pipeline.Steps[2].InputMapping["rate"] = models.InputRef{Source: "no-such-step", Field: "rate"}
	engine, store := newTestEngine(source, invoker)

	_, err := engine.Execute(context.Background(), pipeline, nil)
	require.Error(t, err)
	assert.Equal(t, 0, store.created, "contract violations fail before anything is recorded")
}

func TestResolveInputCoercesToDeclaredType(t *testing.T) {
	workflow := &models.WorkflowDescriptor{
		ID: "wf-t",
		InputSchema: models.Schema{Properties: []models.SchemaField{
			{Name: "amount", Type: models.FieldString},
		}},
	}
	step := models.PipelineStep{
		ID: "s2", Position: 1,
		InputMapping: map[string]models.InputRef{
			"amount": {Source: "s1", Field: "value"},
		},
	}
	outputs := map[string]map[string]any{"s1": {"value": 7.0}}

	input := resolveInput(step, workflow, outputs, nil)
	assert.Equal(t, "7", input["amount"], "number coerced to the declared string type")
}
