// Package api contains the HTTP handlers for the marketplace backend.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"flowmarket/backend/internal/catalog"
	"flowmarket/backend/internal/composer"
	"flowmarket/backend/internal/execution"
	"flowmarket/backend/internal/logging"
	"flowmarket/backend/internal/metrics"
	"flowmarket/backend/internal/repository"
)

// Server holds the dependencies for the API handlers.
type Server struct {
	Composer *composer.Composer
	Engine   *execution.Engine
	Catalog  catalog.Catalog
	Repo     repository.Repository
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
}

// NewServer creates a new Server.
func NewServer(c *composer.Composer, e *execution.Engine, cat catalog.Catalog, repo repository.Repository, m *metrics.Metrics, logger *logging.Logger) *Server {
	return &Server{Composer: c, Engine: e, Catalog: cat, Repo: repo, Metrics: m, Logger: logger}
}

// Register mounts the API routes on the given group. The ownership
// middleware guards everything that creates or executes pipelines.
func (s *Server) Register(g *echo.Group, requireOwner echo.MiddlewareFunc) {
	g.GET("/workflows", s.ListWorkflows)
	g.GET("/workflows/:id", s.GetWorkflow)

	g.POST("/pipelines/compose", s.ComposePipeline)
	g.POST("/pipelines/check-compatibility", s.CheckCompatibility)
	g.POST("/pipelines", s.CreatePipeline, requireOwner)
	g.GET("/pipelines", s.ListPipelines, requireOwner)
	g.GET("/pipelines/:id", s.GetPipeline)
	g.POST("/pipelines/:id/execute", s.ExecutePipeline, requireOwner)
	g.GET("/executions/:id", s.GetExecution)
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth reports service and database health.
func (s *Server) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "flowmarket",
		Version:   "1.0.0",
	}
	if s.Repo != nil {
		if err := s.Repo.Ping(c.Request().Context()); err != nil {
			status.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, status)
}

// ProblemDetails is an RFC 7807 Problem Details response.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// ProblemDetailsHandler is an echo HTTPErrorHandler that renders every error
// as RFC 7807 Problem Details.
func ProblemDetailsHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		detail := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			if msg, ok := he.Message.(string); ok {
				detail = msg
			}
		}
		if status >= 500 {
			logger.Error("request failed", "method", c.Request().Method,
				"path", c.Request().URL.Path, "error", err)
		}
		problem := ProblemDetails{
			Type:     "about:blank",
			Title:    http.StatusText(status),
			Status:   status,
			Detail:   detail,
			Instance: c.Request().URL.Path,
		}
		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		c.Response().WriteHeader(status)
		_ = json.NewEncoder(c.Response()).Encode(problem)
	}
}

// Validator adapts go-playground/validator to echo's Validator interface.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
