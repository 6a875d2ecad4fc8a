package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowmarket/backend/pkg/models"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresStore(mock)
}

func TestCreatePipeline(t *testing.T) {
	mock, store := newMockStore(t)

	p := &models.Pipeline{
		ID:           "pl-1",
		OwnerAddress: "0xabc",
		Name:         "Price alert",
		Steps: []models.PipelineStep{
			{ID: "step-a", WorkflowID: "wf-a", Position: 0},
			{ID: "step-b", WorkflowID: "wf-b", Position: 1, InputMapping: map[string]models.InputRef{
				"price": {Source: "step-a", Field: "price"},
			}},
		},
		TotalPrice: 30_000,
		Score:      0.91,
		Reasoning:  "A -> B",
	}

	mock.ExpectExec("INSERT INTO pipelines").
		WithArgs("pl-1", "0xabc", "Price alert", "", pgxmock.AnyArg(),
			int64(30_000), 0.91, "A -> B", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.CreatePipeline(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, p.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePipelineRejectsBadSteps(t *testing.T) {
	mock, store := newMockStore(t)

	// step-a maps from step-b, which comes after it
	p := &models.Pipeline{
		ID:           "pl-bad",
		OwnerAddress: "0xabc",
		Steps: []models.PipelineStep{
			{ID: "step-a", WorkflowID: "wf-a", Position: 0, InputMapping: map[string]models.InputRef{
				"value": {Source: "step-b", Field: "price"},
			}},
			{ID: "step-b", WorkflowID: "wf-b", Position: 1},
		},
	}

	err := store.CreatePipeline(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not precede")
	assert.NoError(t, mock.ExpectationsWereMet(), "no SQL should run for an invalid pipeline")
}

func TestGetPipelineNotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM pipelines WHERE id =").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetPipeline(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWorkflowDecodesSchemas(t *testing.T) {
	mock, store := newMockStore(t)

	inputSchema := []byte(`{"type":"object","properties":{"symbol":{"type":"string"},"price":{"type":"number"}},"required":["symbol"]}`)
	outputSchema := []byte(`{"type":"object","properties":{"summary":{"type":"string"}}}`)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM workflows WHERE id =").
		WithArgs("wf-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "category", "owner_address", "endpoint",
			"input_schema", "output_schema", "price", "total_executions",
			"successful_executions", "created_at", "updated_at",
		}).AddRow(
			"wf-1", "Analyzer", "Analyzes things", "analytics", "0xabc", "https://a.example",
			inputSchema, outputSchema, int64(40_000), int64(100), int64(95), now, now,
		))

	w, err := store.GetWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Analyzer", w.Name)
	// property order survives the round trip
	require.Len(t, w.InputSchema.Properties, 2)
	assert.Equal(t, "symbol", w.InputSchema.Properties[0].Name)
	assert.Equal(t, "price", w.InputSchema.Properties[1].Name)
	assert.Equal(t, []string{"symbol"}, w.InputSchema.Required)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateExecution(t *testing.T) {
	mock, store := newMockStore(t)

	completed := time.Now()
	e := &models.PipelineExecution{
		ID:         "ex-1",
		PipelineID: "pl-1",
		Status:     models.ExecutionPartial,
		StepResults: []models.PipelineStepResult{
			{StepID: "step-a", WorkflowID: "wf-a", Success: true},
			{StepID: "step-b", WorkflowID: "wf-b", Success: false, Error: "boom"},
		},
		DurationMs:  120,
		CompletedAt: &completed,
	}

	mock.ExpectExec("UPDATE executions SET").
		WithArgs("ex-1", models.ExecutionPartial, pgxmock.AnyArg(), pgxmock.AnyArg(),
			int64(120), &completed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateExecution(context.Background(), e)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
