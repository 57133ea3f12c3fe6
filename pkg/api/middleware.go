package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// cmlModeHeader is the client-supplied header naming the caller's access
// tier for CML-bearing artifacts (spec.md §6).
const cmlModeHeader = "x-cml-mode"

// cmlModeGate rejects requests for a CML-gated artifact type (cml,
// cml_validation) unless the caller declares an advanced or expert
// x-cml-mode. Applied only to the latest-artifact route, mirroring the
// teacher's narrowly-scoped securityHeaders middleware
// (pkg/api/middleware.go) rather than a blanket server-wide check.
func cmlModeGate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			artifactType := models.ArtifactType(c.Param("artifactType"))
			if !models.RequiresCMLMode(artifactType) {
				return next(c)
			}
			mode := models.CMLMode(c.Request().Header.Get(cmlModeHeader))
			if mode == "" {
				mode = models.ModeUser
			}
			if !mode.Valid() || !mode.CanReadCML() {
				return echo.NewHTTPError(http.StatusForbidden, "x-cml-mode must be advanced or expert to read "+string(artifactType))
			}
			return next(c)
		}
	}
}
