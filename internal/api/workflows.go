package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"flowmarket/backend/internal/catalog"
	"flowmarket/backend/internal/repository"
)

// ListWorkflows returns the marketplace workflow directory, optionally
// filtered by category and free-text query.
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	workflows, err := s.Catalog.ListWorkflows(ctx, catalog.Filter{
		Category: c.QueryParam("category"),
		Query:    c.QueryParam("q"),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list workflows: "+err.Error())
	}
	return c.JSON(http.StatusOK, workflows)
}

// GetWorkflow returns one workflow descriptor.
// (GET /api/v1/workflows/:id)
func (s *Server) GetWorkflow(c echo.Context) error {
	workflow, err := s.Catalog.GetWorkflow(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, workflow)
}
