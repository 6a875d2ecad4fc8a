// Package execution runs assembled pipelines: sequential best-effort step
// invocation with field-mapping input resolution and append-only result
// records.
package execution

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"flowmarket/backend/pkg/models"
)

// InvocationResult is the outcome of one workflow call.
type InvocationResult struct {
	Success bool
	Output  map[string]any
	Error   string
}

// Invoker performs a single workflow invocation. The engine treats it as a
// black box: success, output, error, elapsed time.
type Invoker interface {
	Invoke(ctx context.Context, workflow *models.WorkflowDescriptor, input map[string]any) *InvocationResult
}

// HTTPInvoker calls a workflow's hosted endpoint over HTTP with payment
// headers. Retry policy lives here, not in the engine: a call that exhausts
// its retries is reported as a failed invocation and the pipeline moves on.
type HTTPInvoker struct {
	client      *resty.Client
	maxRetries  uint64
	baseBackoff time.Duration
}

// NewHTTPInvoker creates an invoker with a per-call timeout.
func NewHTTPInvoker(stepTimeout time.Duration) *HTTPInvoker {
	return &HTTPInvoker{
		client:      resty.New().SetTimeout(stepTimeout),
		maxRetries:  2,
		baseBackoff: 200 * time.Millisecond,
	}
}

// Invoke POSTs the resolved input to the workflow endpoint. 5xx responses
// and transport errors are retried with exponential backoff; 4xx responses
// are not.
func (h *HTTPInvoker) Invoke(ctx context.Context, workflow *models.WorkflowDescriptor, input map[string]any) *InvocationResult {
	if workflow.Endpoint == "" {
		return &InvocationResult{Error: "workflow has no endpoint"}
	}

	var output map[string]any
	backoff := retry.WithMaxRetries(h.maxRetries, retry.NewExponential(h.baseBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		output = nil
		resp, err := h.client.R().
			SetContext(ctx).
			SetHeader("X-Payment-Amount", strconv.FormatInt(workflow.Price, 10)).
			SetHeader("X-Payment-Currency", "USDC").
			SetBody(input).
			SetResult(&output).
			Post(workflow.Endpoint)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode() >= 500 {
			return retry.RetryableError(fmt.Errorf("workflow returned status %d", resp.StatusCode()))
		}
		if resp.IsError() {
			return fmt.Errorf("workflow returned status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return &InvocationResult{Error: err.Error()}
	}
	return &InvocationResult{Success: true, Output: output}
}
