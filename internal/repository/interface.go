// Package repository persists marketplace workflows, pipelines, and
// execution records in PostgreSQL.
package repository

import (
	"context"
	"errors"

	"flowmarket/backend/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// WorkflowFilter narrows a directory listing. Zero value lists everything.
type WorkflowFilter struct {
	Category string
	Query    string // substring match over name and description
}

// Repository is the persistence boundary for the service.
type Repository interface {
	// Marketplace workflow directory.
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowDescriptor) error
	GetWorkflow(ctx context.Context, id string) (*models.WorkflowDescriptor, error)
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]models.WorkflowDescriptor, error)

	// Pipelines.
	CreatePipeline(ctx context.Context, pipeline *models.Pipeline) error
	GetPipeline(ctx context.Context, id string) (*models.Pipeline, error)
	ListPipelinesByOwner(ctx context.Context, ownerAddress string) ([]models.Pipeline, error)

	// Executions.
	CreateExecution(ctx context.Context, execution *models.PipelineExecution) error
	UpdateExecution(ctx context.Context, execution *models.PipelineExecution) error
	GetExecution(ctx context.Context, id string) (*models.PipelineExecution, error)

	Ping(ctx context.Context) error
}
