package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// defaultReportHistoryLimit bounds an absent or unparseable ?limit= query
// param on the history endpoint.
const defaultReportHistoryLimit = 20

// runReportHandler handles GET /projects/:id/runs/:runId/report.
func (s *Server) runReportHandler(c *echo.Context) error {
	report, err := s.store.GetReport(c.Request().Context(), c.Param("id"), c.Param("runId"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// reportHistoryHandler handles GET /projects/:id/reports/history.
func (s *Server) reportHistoryHandler(c *echo.Context) error {
	limit := defaultReportHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	reports, err := s.store.ListReports(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, reports)
}

// aggregateReportsHandler handles GET /reports/aggregate: the latest
// report across every project, for a cross-project leaderboard view.
// The Store interface has no direct "all latest reports" query, so this
// walks ListProjects and takes each project's single most recent report,
// skipping projects that have never completed a run.
func (s *Server) aggregateReportsHandler(c *echo.Context) error {
	ctx := c.Request().Context()

	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return mapError(err)
	}

	resp := AggregateReportsResponse{Reports: make([]models.GenerationReport, 0, len(projects))}
	for _, p := range projects {
		reports, err := s.store.ListReports(ctx, p.ID, 1)
		if err != nil {
			return mapError(err)
		}
		if len(reports) == 0 {
			continue
		}
		resp.Reports = append(resp.Reports, reports[0])
	}
	return c.JSON(http.StatusOK, resp)
}
