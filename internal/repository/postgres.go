package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"flowmarket/backend/pkg/models"
)

// DB is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// unit tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore is the PostgreSQL implementation of Repository.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// SaveWorkflow inserts or updates a marketplace workflow descriptor.
func (s *PostgresStore) SaveWorkflow(ctx context.Context, w *models.WorkflowDescriptor) error {
	inputSchema, err := json.Marshal(w.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal input schema: %w", err)
	}
	outputSchema, err := json.Marshal(w.OutputSchema)
	if err != nil {
		return fmt.Errorf("marshal output schema: %w", err)
	}
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	_, err = s.db.Exec(ctx,
		`INSERT INTO workflows (id, name, description, category, owner_address, endpoint,
			input_schema, output_schema, price, total_executions, successful_executions,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			category = EXCLUDED.category, owner_address = EXCLUDED.owner_address,
			endpoint = EXCLUDED.endpoint, input_schema = EXCLUDED.input_schema,
			output_schema = EXCLUDED.output_schema, price = EXCLUDED.price,
			total_executions = EXCLUDED.total_executions,
			successful_executions = EXCLUDED.successful_executions,
			updated_at = EXCLUDED.updated_at`,
		w.ID, w.Name, w.Description, w.Category, w.OwnerAddress, w.Endpoint,
		inputSchema, outputSchema, w.Price, w.TotalExecutions, w.SuccessfulExecutions,
		w.CreatedAt, w.UpdatedAt)
	return err
}

// GetWorkflow retrieves one workflow descriptor by id.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDescriptor, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, name, description, category, owner_address, endpoint,
			input_schema, output_schema, price, total_executions, successful_executions,
			created_at, updated_at
		 FROM workflows WHERE id = $1`, id)
	return scanWorkflow(row)
}

// ListWorkflows lists directory workflows matching the filter.
func (s *PostgresStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]models.WorkflowDescriptor, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, category, owner_address, endpoint,
			input_schema, output_schema, price, total_executions, successful_executions,
			created_at, updated_at
		 FROM workflows
		 WHERE ($1 = '' OR category = $1)
		   AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		 ORDER BY total_executions DESC, name`,
		filter.Category, filter.Query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []models.WorkflowDescriptor
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *w)
	}
	return workflows, rows.Err()
}

func scanWorkflow(row pgx.Row) (*models.WorkflowDescriptor, error) {
	var w models.WorkflowDescriptor
	var inputSchema, outputSchema []byte
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Category, &w.OwnerAddress,
		&w.Endpoint, &inputSchema, &outputSchema, &w.Price, &w.TotalExecutions,
		&w.SuccessfulExecutions, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(inputSchema, &w.InputSchema); err != nil {
		return nil, fmt.Errorf("unmarshal input schema: %w", err)
	}
	if err := json.Unmarshal(outputSchema, &w.OutputSchema); err != nil {
		return nil, fmt.Errorf("unmarshal output schema: %w", err)
	}
	return &w, nil
}

// CreatePipeline persists a new pipeline.
func (s *PostgresStore) CreatePipeline(ctx context.Context, p *models.Pipeline) error {
	if err := models.ValidateSteps(p.Steps); err != nil {
		return fmt.Errorf("invalid pipeline: %w", err)
	}
	steps, err := json.Marshal(p.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err = s.db.Exec(ctx,
		`INSERT INTO pipelines (id, owner_address, name, description, steps,
			total_price, score, reasoning, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.OwnerAddress, p.Name, p.Description, steps,
		p.TotalPrice, p.Score, p.Reasoning, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetPipeline retrieves a pipeline by id.
func (s *PostgresStore) GetPipeline(ctx context.Context, id string) (*models.Pipeline, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, owner_address, name, description, steps, total_price, score,
			reasoning, created_at, updated_at
		 FROM pipelines WHERE id = $1`, id)
	return scanPipeline(row)
}

// ListPipelinesByOwner lists pipelines belonging to one owner address.
func (s *PostgresStore) ListPipelinesByOwner(ctx context.Context, ownerAddress string) ([]models.Pipeline, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_address, name, description, steps, total_price, score,
			reasoning, created_at, updated_at
		 FROM pipelines WHERE owner_address = $1 ORDER BY created_at DESC`, ownerAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pipelines []models.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, *p)
	}
	return pipelines, rows.Err()
}

func scanPipeline(row pgx.Row) (*models.Pipeline, error) {
	var p models.Pipeline
	var steps []byte
	err := row.Scan(&p.ID, &p.OwnerAddress, &p.Name, &p.Description, &steps,
		&p.TotalPrice, &p.Score, &p.Reasoning, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(steps, &p.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return &p, nil
}

// CreateExecution persists a freshly started execution record.
func (s *PostgresStore) CreateExecution(ctx context.Context, e *models.PipelineExecution) error {
	stepResults, finalOutput, err := marshalExecutionBlobs(e)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO executions (id, pipeline_id, status, step_results, final_output,
			duration_ms, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.PipelineID, e.Status, stepResults, finalOutput,
		e.DurationMs, e.StartedAt, e.CompletedAt)
	return err
}

// UpdateExecution rewrites an execution record after step progress or
// finalization.
func (s *PostgresStore) UpdateExecution(ctx context.Context, e *models.PipelineExecution) error {
	stepResults, finalOutput, err := marshalExecutionBlobs(e)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`UPDATE executions SET status = $2, step_results = $3, final_output = $4,
			duration_ms = $5, completed_at = $6
		 WHERE id = $1`,
		e.ID, e.Status, stepResults, finalOutput, e.DurationMs, e.CompletedAt)
	return err
}

// GetExecution retrieves an execution record by id.
func (s *PostgresStore) GetExecution(ctx context.Context, id string) (*models.PipelineExecution, error) {
	var e models.PipelineExecution
	var stepResults, finalOutput []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, pipeline_id, status, step_results, final_output, duration_ms,
			started_at, completed_at
		 FROM executions WHERE id = $1`, id).
		Scan(&e.ID, &e.PipelineID, &e.Status, &stepResults, &finalOutput,
			&e.DurationMs, &e.StartedAt, &e.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(stepResults) > 0 {
		if err := json.Unmarshal(stepResults, &e.StepResults); err != nil {
			return nil, fmt.Errorf("unmarshal step results: %w", err)
		}
	}
	if len(finalOutput) > 0 {
		if err := json.Unmarshal(finalOutput, &e.FinalOutput); err != nil {
			return nil, fmt.Errorf("unmarshal final output: %w", err)
		}
	}
	return &e, nil
}

func marshalExecutionBlobs(e *models.PipelineExecution) (stepResults, finalOutput []byte, err error) {
	stepResults, err = json.Marshal(e.StepResults)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal step results: %w", err)
	}
	if e.FinalOutput != nil {
		finalOutput, err = json.Marshal(e.FinalOutput)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal final output: %w", err)
		}
	}
	return stepResults, finalOutput, nil
}
