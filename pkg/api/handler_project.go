package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// createProjectHandler handles POST /projects.
func (s *Server) createProjectHandler(c *echo.Context) error {
	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	project := models.Project{
		ID:        uuid.New().String(),
		Name:      req.Name,
		CreatedAt: time.Now(),
		Status:    models.ProjectStatusIdle,
	}
	if err := s.store.CreateProject(c.Request().Context(), project); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, project)
}

// listProjectsHandler handles GET /projects.
func (s *Server) listProjectsHandler(c *echo.Context) error {
	projects, err := s.store.ListProjects(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, projects)
}

// getProjectHandler handles GET /projects/:id.
func (s *Server) getProjectHandler(c *echo.Context) error {
	project, err := s.store.GetProject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, project)
}
