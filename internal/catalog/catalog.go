// Package catalog is the workflow discovery boundary the composer plans
// against: the local marketplace directory, optionally merged with a remote
// registry, with an LRU cache in front of descriptor lookups.
package catalog

import (
	"context"

	"flowmarket/backend/internal/repository"
	"flowmarket/backend/pkg/models"
)

// Filter narrows a workflow listing.
type Filter struct {
	Category string
	Query    string
}

// Catalog answers workflow discovery queries. Implementations return
// repository.ErrNotFound for unknown ids.
type Catalog interface {
	ListWorkflows(ctx context.Context, filter Filter) ([]models.WorkflowDescriptor, error)
	GetWorkflow(ctx context.Context, id string) (*models.WorkflowDescriptor, error)
}

// Directory exposes the marketplace database as a Catalog.
type Directory struct {
	repo repository.Repository
}

// NewDirectory creates a Directory over the given repository.
func NewDirectory(repo repository.Repository) *Directory {
	return &Directory{repo: repo}
}

func (d *Directory) ListWorkflows(ctx context.Context, filter Filter) ([]models.WorkflowDescriptor, error) {
	return d.repo.ListWorkflows(ctx, repository.WorkflowFilter{
		Category: filter.Category,
		Query:    filter.Query,
	})
}

func (d *Directory) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDescriptor, error) {
	return d.repo.GetWorkflow(ctx, id)
}
