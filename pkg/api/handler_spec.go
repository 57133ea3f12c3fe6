package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/store"
)

// createSpecHandler handles POST /projects/:id/specs. Versions are
// monotonic per project, matching the Artifact Store's own
// (project_id, type, version) versioning scheme.
func (s *Server) createSpecHandler(c *echo.Context) error {
	projectID := c.Param("id")
	if _, err := s.store.GetProject(c.Request().Context(), projectID); err != nil {
		return mapError(err)
	}

	var req models.CreateSpecRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !req.PrimaryAxis.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid primary_axis")
	}
	if !req.TargetLength.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid target_length")
	}
	if req.CastSize <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "cast_size must be positive")
	}

	version := 1
	if latest, err := s.store.LatestSpec(c.Request().Context(), projectID); err == nil {
		version = latest.Version + 1
	} else {
		var notFound *store.ErrNotFound
		if !errors.As(err, &notFound) {
			return mapError(err)
		}
	}

	spec := models.Spec{
		ID:             uuid.New().String(),
		ProjectID:      projectID,
		Version:        version,
		Decade:         req.Decade,
		LocationPreset: req.LocationPreset,
		Tone:           req.Tone,
		Theme:          req.Theme,
		CastSize:       req.CastSize,
		CastNames:      req.CastNames,
		PrimaryAxis:    req.PrimaryAxis,
		TargetLength:   req.TargetLength,
		CreatedAt:      time.Now(),
	}
	if err := s.store.CreateSpec(c.Request().Context(), spec); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, spec)
}

// getSpecHandler handles GET /specs/:id.
func (s *Server) getSpecHandler(c *echo.Context) error {
	spec, err := s.store.GetSpec(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, spec)
}
