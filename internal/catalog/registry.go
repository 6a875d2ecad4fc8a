package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"flowmarket/backend/internal/repository"
	"flowmarket/backend/pkg/models"
)

// RegistryClient fetches workflow descriptors from a remote registry
// service (the HTTP face of the on-chain workflow registry).
type RegistryClient struct {
	client *resty.Client
}

// NewRegistryClient creates a client for the registry at baseURL.
func NewRegistryClient(baseURL string, timeout time.Duration) *RegistryClient {
	return &RegistryClient{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (r *RegistryClient) ListWorkflows(ctx context.Context, filter Filter) ([]models.WorkflowDescriptor, error) {
	var workflows []models.WorkflowDescriptor
	req := r.client.R().SetContext(ctx).SetResult(&workflows)
	if filter.Category != "" {
		req.SetQueryParam("category", filter.Category)
	}
	if filter.Query != "" {
		req.SetQueryParam("q", filter.Query)
	}
	resp, err := req.Get("/workflows")
	if err != nil {
		return nil, fmt.Errorf("registry list: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("registry list: status %d", resp.StatusCode())
	}
	return workflows, nil
}

func (r *RegistryClient) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDescriptor, error) {
	var workflow models.WorkflowDescriptor
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&workflow).
		SetPathParam("id", id).
		Get("/workflows/{id}")
	if err != nil {
		return nil, fmt.Errorf("registry get %s: %w", id, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, repository.ErrNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("registry get %s: status %d", id, resp.StatusCode())
	}
	return &workflow, nil
}
