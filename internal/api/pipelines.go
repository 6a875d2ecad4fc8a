package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"flowmarket/backend/internal/auth"
	"flowmarket/backend/internal/repository"
	"flowmarket/backend/pkg/models"
)

// ComposeRequest asks for an automatic pipeline proposal.
type ComposeRequest struct {
	Goal string `json:"goal" validate:"required,min=3"`
}

// ComposePipeline plans a pipeline for a natural-language goal.
// (POST /api/v1/pipelines/compose)
func (s *Server) ComposePipeline(c echo.Context) error {
	var req ComposeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	proposal, err := s.Composer.AutoCompose(c.Request().Context(), req.Goal)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "composition failed: "+err.Error())
	}
	s.Metrics.CompositionAttempted(c.Request().Context(), proposal != nil)
	if proposal == nil {
		// Composition failure, not an error: no capability had a provider.
		// The caller should fall back to single-workflow execution.
		return echo.NewHTTPError(http.StatusUnprocessableEntity,
			"no pipeline could be composed for this goal")
	}
	return c.JSON(http.StatusOK, proposal)
}

// CheckCompatibilityRequest probes one candidate connection between nodes.
type CheckCompatibilityRequest struct {
	SourceWorkflowID string `json:"source_workflow_id" validate:"required"`
	TargetWorkflowID string `json:"target_workflow_id" validate:"required"`
}

// CheckCompatibility reports whether the source workflow's output can feed
// the target's input, with ranked mapping suggestions for the builder UI.
// (POST /api/v1/pipelines/check-compatibility)
func (s *Server) CheckCompatibility(c echo.Context) error {
	var req CheckCompatibilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	report, err := s.Composer.CheckWorkflowCompatibility(c.Request().Context(),
		req.SourceWorkflowID, req.TargetWorkflowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// CreatePipelineRequest persists a proposal under the caller's ownership.
type CreatePipelineRequest struct {
	Name        string                `json:"name" validate:"required"`
	Description string                `json:"description"`
	Steps       []models.PipelineStep `json:"steps" validate:"required,min=1"`
	TotalPrice  int64                 `json:"total_price"`
	Score       float64               `json:"score"`
	Reasoning   string                `json:"reasoning"`
}

// CreatePipeline persists a proposed pipeline for the authenticated owner.
// (POST /api/v1/pipelines)
func (s *Server) CreatePipeline(c echo.Context) error {
	owner, ok := auth.OwnerFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "owner not found in context")
	}

	var req CreatePipelineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := models.ValidateSteps(req.Steps); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid steps: "+err.Error())
	}

	pipeline := &models.Pipeline{
		ID:           uuid.New().String(),
		OwnerAddress: owner,
		Name:         req.Name,
		Description:  req.Description,
		Steps:        req.Steps,
		TotalPrice:   req.TotalPrice,
		Score:        req.Score,
		Reasoning:    req.Reasoning,
	}
	if err := s.Repo.CreatePipeline(c.Request().Context(), pipeline); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save pipeline: "+err.Error())
	}
	return c.JSON(http.StatusCreated, pipeline)
}

// ListPipelines returns the caller's pipelines.
// (GET /api/v1/pipelines)
func (s *Server) ListPipelines(c echo.Context) error {
	owner, ok := auth.OwnerFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "owner not found in context")
	}
	pipelines, err := s.Repo.ListPipelinesByOwner(c.Request().Context(), owner)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pipelines)
}

// GetPipeline returns one persisted pipeline.
// (GET /api/v1/pipelines/:id)
func (s *Server) GetPipeline(c echo.Context) error {
	pipeline, err := s.Repo.GetPipeline(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "pipeline not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pipeline)
}

// ExecuteRequest carries the trigger payload for a pipeline run.
type ExecuteRequest struct {
	TriggerInput map[string]any `json:"trigger_input"`
}

// ExecutePipeline runs a pipeline the caller owns.
// (POST /api/v1/pipelines/:id/execute)
func (s *Server) ExecutePipeline(c echo.Context) error {
	owner, ok := auth.OwnerFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "owner not found in context")
	}

	pipeline, err := s.Repo.GetPipeline(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "pipeline not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if pipeline.OwnerAddress != owner {
		return echo.NewHTTPError(http.StatusForbidden, "pipeline belongs to a different owner")
	}

	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	execution, err := s.Engine.Execute(c.Request().Context(), pipeline, req.TriggerInput)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "execution failed to start: "+err.Error())
	}
	return c.JSON(http.StatusOK, execution)
}

// GetExecution returns one execution record.
// (GET /api/v1/executions/:id)
func (s *Server) GetExecution(c echo.Context) error {
	execution, err := s.Repo.GetExecution(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "execution not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, execution)
}
