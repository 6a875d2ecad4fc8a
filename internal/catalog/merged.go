package catalog

import (
	"context"
	"errors"

	"flowmarket/backend/internal/repository"
	"flowmarket/backend/pkg/models"
)

// Merged presents the local directory and a remote registry as one catalog.
// The directory wins on id collisions; registry failures degrade to a
// directory-only view rather than failing discovery outright.
type Merged struct {
	directory Catalog
	registry  Catalog
}

// NewMerged combines a directory with an optional registry. A nil registry
// yields a directory-only catalog.
func NewMerged(directory, registry Catalog) *Merged {
	return &Merged{directory: directory, registry: registry}
}

func (m *Merged) ListWorkflows(ctx context.Context, filter Filter) ([]models.WorkflowDescriptor, error) {
	local, err := m.directory.ListWorkflows(ctx, filter)
	if err != nil {
		return nil, err
	}
	if m.registry == nil {
		return local, nil
	}

	remote, err := m.registry.ListWorkflows(ctx, filter)
	if err != nil {
		// Registry down is not fatal; the directory view still serves.
		return local, nil
	}

	seen := make(map[string]bool, len(local))
	for _, w := range local {
		seen[w.ID] = true
	}
	for _, w := range remote {
		if !seen[w.ID] {
			local = append(local, w)
		}
	}
	return local, nil
}

func (m *Merged) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDescriptor, error) {
	w, err := m.directory.GetWorkflow(ctx, id)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, repository.ErrNotFound) || m.registry == nil {
		return nil, err
	}
	return m.registry.GetWorkflow(ctx, id)
}
