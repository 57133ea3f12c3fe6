package api

import (
	"time"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// StatusResponse is returned by GET /projects/{id}/status.
type StatusResponse struct {
	Project   models.Project `json:"project"`
	ActiveRun *models.Run    `json:"active_run,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ExportBundle is returned by POST /projects/{id}/export: the latest
// version of every requested artifact type, keyed by type.
type ExportBundle struct {
	ProjectID   string                                   `json:"project_id"`
	GeneratedAt time.Time                                `json:"generated_at"`
	Artifacts   map[models.ArtifactType]models.Artifact `json:"artifacts"`
}

// AggregateReportsResponse is returned by GET /reports/aggregate: the
// most recent generation report for every project that has produced one,
// for cross-project comparison of pass rates and grades.
type AggregateReportsResponse struct {
	Reports []models.GenerationReport `json:"reports"`
}
