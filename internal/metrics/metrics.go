// Package metrics exposes service counters over OpenTelemetry with a
// Prometheus exporter.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the service's instruments. A nil *Metrics is valid and
// records nothing, so wiring stays optional in tests.
type Metrics struct {
	handler http.Handler

	compositions      metric.Int64Counter
	executionsStarted metric.Int64Counter
	executionsDone    metric.Int64Counter
	stepFailures      metric.Int64Counter
	executionSeconds  metric.Float64Histogram
}

// New builds the meter provider, instruments, and the /metrics handler.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("flowmarket/backend")

	m := &Metrics{handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	if m.compositions, err = meter.Int64Counter("pipeline_compositions_total",
		metric.WithDescription("Pipeline composition attempts")); err != nil {
		return nil, err
	}
	if m.executionsStarted, err = meter.Int64Counter("pipeline_executions_started_total",
		metric.WithDescription("Pipeline executions started")); err != nil {
		return nil, err
	}
	if m.executionsDone, err = meter.Int64Counter("pipeline_executions_finished_total",
		metric.WithDescription("Pipeline executions finished, by terminal status")); err != nil {
		return nil, err
	}
	if m.stepFailures, err = meter.Int64Counter("pipeline_step_failures_total",
		metric.WithDescription("Failed pipeline step invocations")); err != nil {
		return nil, err
	}
	if m.executionSeconds, err = meter.Float64Histogram("pipeline_execution_seconds",
		metric.WithDescription("End-to-end pipeline execution duration")); err != nil {
		return nil, err
	}
	return m, nil
}

// Handler serves the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// CompositionAttempted counts a composition pass and whether it produced a
// proposal.
func (m *Metrics) CompositionAttempted(ctx context.Context, proposed bool) {
	if m == nil {
		return
	}
	m.compositions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("proposed", proposed)))
}

// ExecutionStarted counts a pipeline execution entering the running state.
func (m *Metrics) ExecutionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.executionsStarted.Add(ctx, 1)
}

// ExecutionFinished counts a terminal execution and observes its duration.
func (m *Metrics) ExecutionFinished(ctx context.Context, status string, seconds float64) {
	if m == nil {
		return
	}
	m.executionsDone.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.executionSeconds.Record(ctx, seconds)
}

// StepFailed counts one failed step invocation.
func (m *Metrics) StepFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.stepFailures.Add(ctx, 1)
}
