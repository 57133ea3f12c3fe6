package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// regenerateHandler handles POST /projects/:id/regenerate. Unsupported
// scopes surface as the orchestrator's RegenerateUnsupported error
// (mapped to 400 by mapError), never a partial attempt.
func (s *Server) regenerateHandler(c *echo.Context) error {
	var req RegenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Scope == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "scope is required")
	}

	artifact, err := s.orchestrator.Regenerate(c.Request().Context(), c.Param("id"), req.Scope)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, artifact)
}
