package catalog

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"flowmarket/backend/pkg/models"
)

// Cached wraps a Catalog with an LRU cache on GetWorkflow. Listings are not
// cached; composition wants a current view of the whole directory, but the
// execution engine hits GetWorkflow once per step and descriptors are
// immutable for the duration of a run.
type Cached struct {
	inner Catalog
	cache *lru.Cache[string, *models.WorkflowDescriptor]
}

// NewCached wraps inner with a descriptor cache of the given size.
func NewCached(inner Catalog, size int) (*Cached, error) {
	cache, err := lru.New[string, *models.WorkflowDescriptor](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) ListWorkflows(ctx context.Context, filter Filter) ([]models.WorkflowDescriptor, error) {
	return c.inner.ListWorkflows(ctx, filter)
}

func (c *Cached) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDescriptor, error) {
	if w, ok := c.cache.Get(id); ok {
		return w, nil
	}
	w, err := c.inner.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, w)
	return w, nil
}
