// Package store defines the Artifact Store contract spec.md §6 describes
// abstractly ("a key-value store keyed by (project_id, type, version) for
// artifacts, plus singleton records for projects, specs, runs, run
// events, and activity logs"). Two concrete backends implement it:
// pkg/store/jsonfile (single-file, atomic replace) and pkg/store/postgres
// (raw SQL via pgx).
package store

import (
	"context"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// Store is the single persistence seam every component above it depends
// on through this interface, never a concrete backend type — mirroring
// the teacher's own practice of depending on its database Client type
// rather than reaching for *sql.DB directly in service code.
type Store interface {
	CreateProject(ctx context.Context, project models.Project) error
	GetProject(ctx context.Context, id string) (models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	UpdateProjectStatus(ctx context.Context, id string, status models.ProjectStatus) error

	CreateSpec(ctx context.Context, spec models.Spec) error
	GetSpec(ctx context.Context, id string) (models.Spec, error)
	LatestSpec(ctx context.Context, projectID string) (models.Spec, error)

	CreateRun(ctx context.Context, run models.Run) error
	GetRun(ctx context.Context, id string) (models.Run, error)
	UpdateRun(ctx context.Context, run models.Run) error
	ActiveRun(ctx context.Context, projectID string) (models.Run, bool, error)

	PutArtifact(ctx context.Context, artifact models.Artifact) error
	GetLatestArtifact(ctx context.Context, key models.Key) (models.Artifact, error)
	GetArtifactVersion(ctx context.Context, key models.Key, version int) (models.Artifact, error)
	ListArtifactVersions(ctx context.Context, key models.Key) ([]models.Artifact, error)

	// AppendRunEvent assigns event the run's next monotonic offset and
	// persists it, returning the stored copy (with Step populated) so
	// callers that also fan it out live (pkg/events.Publisher) can
	// broadcast the same offset catchup would later replay.
	AppendRunEvent(ctx context.Context, event models.RunEvent) (models.RunEvent, error)
	ListRunEvents(ctx context.Context, runID string, fromOffset int) ([]models.RunEvent, error)

	AppendOperationalLog(ctx context.Context, entry models.OperationalLogEntry) error

	PutReport(ctx context.Context, report models.GenerationReport) error
	GetReport(ctx context.Context, projectID, runID string) (models.GenerationReport, error)
	ListReports(ctx context.Context, projectID string, limit int) ([]models.GenerationReport, error)

	// Clear wipes all persisted state (POST /admin/clear-store).
	Clear(ctx context.Context) error
}

// ErrNotFound is returned by lookups that find nothing; backends return it
// as is, and pkg/api translates its Kind into the apperror.Kind a caller
// expects (ProjectNotFound, ArtifactNotFound, ...). The store layer itself
// stays apperror-free so
// it can be unit tested without pulling in the HTTP-facing error model.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return e.Kind + " not found: " + e.ID
}
