package api

import (
	"errors"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/store"
)

// exportableArtifactTypes is every producible type except the internal-only
// raw novelty response; exportHandler exports these, in this order, when a
// request names no types explicitly.
var exportableArtifactTypes = []models.ArtifactType{
	models.ArtifactSetting, models.ArtifactCast, models.ArtifactBackgroundContext,
	models.ArtifactHardLogicDevices, models.ArtifactCML, models.ArtifactCMLValidation,
	models.ArtifactCharacterProfiles, models.ArtifactClues, models.ArtifactFairPlayReport,
	models.ArtifactOutline, models.ArtifactProseShort, models.ArtifactProseMedium,
	models.ArtifactProseLong, models.ArtifactSynopsis, models.ArtifactNoveltyAudit,
	models.ArtifactGamePack, models.ArtifactGenerationReport, models.ArtifactBlindReaderVerdict,
}

// exportHandler handles POST /projects/:id/export. An empty or absent
// Types list exports every producible artifact type the project has;
// types that were never produced are silently skipped rather than
// failing the whole bundle.
func (s *Server) exportHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")

	var req ExportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	types := exportableArtifactTypes
	if len(req.Types) > 0 {
		types = make([]models.ArtifactType, 0, len(req.Types))
		for _, t := range req.Types {
			at := models.ArtifactType(t)
			if !at.Valid() {
				return echo.NewHTTPError(http.StatusBadRequest, "unknown artifact type: "+t)
			}
			types = append(types, at)
		}
	}

	bundle := ExportBundle{
		ProjectID:   projectID,
		GeneratedAt: time.Now(),
		Artifacts:   make(map[models.ArtifactType]models.Artifact),
	}
	for _, at := range types {
		artifact, err := s.store.GetLatestArtifact(ctx, models.Key{ProjectID: projectID, Type: at})
		if err != nil {
			var notFound *store.ErrNotFound
			if errors.As(err, &notFound) {
				continue
			}
			return mapError(err)
		}
		bundle.Artifacts[at] = artifact
	}
	return c.JSON(http.StatusOK, bundle)
}
