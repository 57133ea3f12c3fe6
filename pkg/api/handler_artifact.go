package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// latestArtifactHandler handles GET /projects/:id/:artifactType/latest.
// cmlModeGate (registered alongside this route) has already rejected
// unauthorized reads of CML-gated types before this runs.
func (s *Server) latestArtifactHandler(c *echo.Context) error {
	artifactType := models.ArtifactType(c.Param("artifactType"))
	if !artifactType.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown artifact type: "+string(artifactType))
	}

	key := models.Key{ProjectID: c.Param("id"), Type: artifactType}
	artifact, err := s.store.GetLatestArtifact(c.Request().Context(), key)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, artifact)
}
