// Package postgres implements pkg/store.Store against PostgreSQL with raw
// SQL via pgx — no ORM/code-generation layer, since entgo.io/ent's code
// generation step is out of scope for this exercise (see DESIGN.md). The
// connection-pool-then-migrate bootstrap shape is grounded on the
// teacher's pkg/database/client.go (NewClient: open pool, ping, run
// embedded migrations via golang-migrate), with ent's driver wiring
// dropped in favor of plain SQL statements.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/store"
)

//go:embed migrations
var migrationsFS embed.FS

// Store is a pgxpool-backed store.Store implementation.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against databaseURL, pings it, and applies
// every pending migration before returning.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if err := runMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrations: %w", err)
	}
	return &Store{pool: pool}, nil
}

// runMigrations applies every embedded migration using its own short-lived
// connection, separate from the pgxpool used for request traffic, mirroring
// the teacher's one-shot migration step taken before the pool is handed to
// callers.
func runMigrations(databaseURL string) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, databaseURL)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	defer sourceDriver.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) CreateProject(ctx context.Context, p models.Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, status, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = $2, status = $3`,
		p.ID, p.Name, string(p.Status), p.CreatedAt)
	return err
}

func (s *Store) GetProject(ctx context.Context, id string) (models.Project, error) {
	var p models.Project
	var status string
	err := s.pool.QueryRow(ctx, `SELECT id, name, status, created_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &status, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Project{}, &store.ErrNotFound{Kind: "project", ID: id}
	}
	p.Status = models.ProjectStatus(status)
	return p, err
}

func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, status, created_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		var p models.Project
		var status string
		if err := rows.Scan(&p.ID, &p.Name, &status, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Status = models.ProjectStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdateProjectStatus(ctx context.Context, id string, status models.ProjectStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE projects SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &store.ErrNotFound{Kind: "project", ID: id}
	}
	return nil
}

func (s *Store) CreateSpec(ctx context.Context, sp models.Spec) error {
	castNames, err := json.Marshal(sp.CastNames)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO specs (id, project_id, version, decade, location_preset, tone, theme, cast_size, cast_names, primary_axis, target_length, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		sp.ID, sp.ProjectID, sp.Version, sp.Decade, sp.LocationPreset, sp.Tone, sp.Theme, sp.CastSize, castNames, string(sp.PrimaryAxis), string(sp.TargetLength), sp.CreatedAt)
	return err
}

func scanSpec(row pgx.Row) (models.Spec, error) {
	var sp models.Spec
	var castNames []byte
	var primaryAxis, targetLength string
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Version, &sp.Decade, &sp.LocationPreset, &sp.Tone, &sp.Theme,
		&sp.CastSize, &castNames, &primaryAxis, &targetLength, &sp.CreatedAt)
	if err != nil {
		return models.Spec{}, err
	}
	sp.PrimaryAxis = models.PrimaryAxis(primaryAxis)
	sp.TargetLength = models.TargetLength(targetLength)
	if len(castNames) > 0 {
		_ = json.Unmarshal(castNames, &sp.CastNames)
	}
	return sp, nil
}

func (s *Store) GetSpec(ctx context.Context, id string) (models.Spec, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_id, version, decade, location_preset, tone, theme, cast_size, cast_names, primary_axis, target_length, created_at
		 FROM specs WHERE id = $1`, id)
	sp, err := scanSpec(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Spec{}, &store.ErrNotFound{Kind: "spec", ID: id}
	}
	return sp, err
}

func (s *Store) LatestSpec(ctx context.Context, projectID string) (models.Spec, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_id, version, decade, location_preset, tone, theme, cast_size, cast_names, primary_axis, target_length, created_at
		 FROM specs WHERE project_id = $1 ORDER BY version DESC LIMIT 1`, projectID)
	sp, err := scanSpec(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Spec{}, &store.ErrNotFound{Kind: "spec", ID: projectID}
	}
	return sp, err
}

func (s *Store) CreateRun(ctx context.Context, r models.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, project_id, spec_id, started_at, finished_at, status, cost_budget_remaining, failure_classification)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.ProjectID, r.SpecID, r.StartedAt, r.FinishedAt, string(r.Status), r.CostBudgetRemaining, r.FailureClassification)
	return err
}

func scanRun(row pgx.Row) (models.Run, error) {
	var r models.Run
	var status string
	err := row.Scan(&r.ID, &r.ProjectID, &r.SpecID, &r.StartedAt, &r.FinishedAt, &status, &r.CostBudgetRemaining, &r.FailureClassification)
	if err != nil {
		return models.Run{}, err
	}
	r.Status = models.RunStatus(status)
	return r, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (models.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_id, spec_id, started_at, finished_at, status, cost_budget_remaining, failure_classification
		 FROM runs WHERE id = $1`, id)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Run{}, &store.ErrNotFound{Kind: "run", ID: id}
	}
	return r, err
}

func (s *Store) UpdateRun(ctx context.Context, r models.Run) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET finished_at = $2, status = $3, cost_budget_remaining = $4, failure_classification = $5 WHERE id = $1`,
		r.ID, r.FinishedAt, string(r.Status), r.CostBudgetRemaining, r.FailureClassification)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &store.ErrNotFound{Kind: "run", ID: r.ID}
	}
	return nil
}

func (s *Store) ActiveRun(ctx context.Context, projectID string) (models.Run, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_id, spec_id, started_at, finished_at, status, cost_budget_remaining, failure_classification
		 FROM runs WHERE project_id = $1 AND status = $2 LIMIT 1`, projectID, string(models.RunStatusRunning))
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Run{}, false, nil
	}
	if err != nil {
		return models.Run{}, false, err
	}
	return r, true, nil
}

func (s *Store) PutArtifact(ctx context.Context, a models.Artifact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO artifacts (id, project_id, run_id, type, version, payload, source_spec_id, parent_artifact_id, model, prompt_version, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 ON CONFLICT (project_id, type, version) DO UPDATE SET payload = $6, created_at = $11`,
		a.ID, a.ProjectID, a.RunID, string(a.Type), a.Version, []byte(a.Payload), a.SourceSpecID, a.ParentArtifactID, a.Model, a.PromptVersion, a.CreatedAt)
	return err
}

func scanArtifact(row pgx.Row) (models.Artifact, error) {
	var a models.Artifact
	var artifactType string
	var payload []byte
	err := row.Scan(&a.ID, &a.ProjectID, &a.RunID, &artifactType, &a.Version, &payload, &a.SourceSpecID, &a.ParentArtifactID, &a.Model, &a.PromptVersion, &a.CreatedAt)
	if err != nil {
		return models.Artifact{}, err
	}
	a.Type = models.ArtifactType(artifactType)
	a.Payload = payload
	return a, nil
}

func (s *Store) GetLatestArtifact(ctx context.Context, key models.Key) (models.Artifact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_id, run_id, type, version, payload, source_spec_id, parent_artifact_id, model, prompt_version, created_at
		 FROM artifacts WHERE project_id = $1 AND type = $2 ORDER BY version DESC LIMIT 1`,
		key.ProjectID, string(key.Type))
	a, err := scanArtifact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Artifact{}, &store.ErrNotFound{Kind: "artifact", ID: string(key.Type)}
	}
	return a, err
}

func (s *Store) GetArtifactVersion(ctx context.Context, key models.Key, version int) (models.Artifact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_id, run_id, type, version, payload, source_spec_id, parent_artifact_id, model, prompt_version, created_at
		 FROM artifacts WHERE project_id = $1 AND type = $2 AND version = $3`,
		key.ProjectID, string(key.Type), version)
	a, err := scanArtifact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Artifact{}, &store.ErrNotFound{Kind: "artifact", ID: fmt.Sprintf("%s@%d", key.Type, version)}
	}
	return a, err
}

func (s *Store) ListArtifactVersions(ctx context.Context, key models.Key) ([]models.Artifact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, run_id, type, version, payload, source_spec_id, parent_artifact_id, model, prompt_version, created_at
		 FROM artifacts WHERE project_id = $1 AND type = $2 ORDER BY version ASC`,
		key.ProjectID, string(key.Type))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AppendRunEvent(ctx context.Context, e models.RunEvent) (models.RunEvent, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return models.RunEvent{}, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.RunEvent{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var step int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(step), -1) + 1 FROM run_events WHERE run_id = $1`, e.RunID).Scan(&step); err != nil {
		return models.RunEvent{}, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO run_events (run_id, step, name, message, severity, payload, timestamp) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.RunID, step, string(e.Name), e.Message, string(e.Severity), payload, e.Timestamp); err != nil {
		return models.RunEvent{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.RunEvent{}, err
	}
	e.Step = step
	return e, nil
}

func (s *Store) ListRunEvents(ctx context.Context, runID string, fromOffset int) ([]models.RunEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, step, name, message, severity, payload, timestamp FROM run_events
		 WHERE run_id = $1 AND step >= $2 ORDER BY step ASC`, runID, fromOffset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RunEvent
	for rows.Next() {
		var e models.RunEvent
		var name, severity string
		var payload []byte
		if err := rows.Scan(&e.RunID, &e.Step, &name, &e.Message, &severity, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Name = models.RunStep(name)
		e.Severity = models.RunEventSeverity(severity)
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &e.Payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AppendOperationalLog(ctx context.Context, entry models.OperationalLogEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO operational_logs (timestamp, project_id, run_id, agent, operation, model, input_tokens, output_tokens, total_tokens, estimated_cost_usd, latency_ms, error)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		entry.Timestamp, entry.ProjectID, entry.RunID, entry.Agent, entry.Operation, entry.Model,
		entry.InputTokens, entry.OutputTokens, entry.TotalTokens, entry.EstimatedCostUSD, entry.LatencyMS, entry.Error)
	return err
}

func (s *Store) PutReport(ctx context.Context, r models.GenerationReport) error {
	phaseScores, err := json.Marshal(r.PhaseScores)
	if err != nil {
		return err
	}
	retryStats, err := json.Marshal(r.RetryStats)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (run_id, project_id, phase_scores, overall_score, overall_grade, passed, retry_stats, total_cost_usd, weakest_phase, strongest_phase)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (run_id) DO UPDATE SET phase_scores = $3, overall_score = $4, overall_grade = $5, passed = $6, retry_stats = $7, total_cost_usd = $8`,
		r.RunID, r.ProjectID, phaseScores, r.OverallScore, string(r.OverallGrade), r.Passed, retryStats, r.TotalCostUSD, r.WeakestPhase, r.StrongestPhase)
	return err
}

func scanReport(row pgx.Row) (models.GenerationReport, error) {
	var r models.GenerationReport
	var grade string
	var phaseScores, retryStats []byte
	err := row.Scan(&r.RunID, &r.ProjectID, &phaseScores, &r.OverallScore, &grade, &r.Passed, &retryStats, &r.TotalCostUSD, &r.WeakestPhase, &r.StrongestPhase)
	if err != nil {
		return models.GenerationReport{}, err
	}
	r.OverallGrade = models.Grade(grade)
	_ = json.Unmarshal(phaseScores, &r.PhaseScores)
	_ = json.Unmarshal(retryStats, &r.RetryStats)
	return r, nil
}

func (s *Store) GetReport(ctx context.Context, projectID, runID string) (models.GenerationReport, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT run_id, project_id, phase_scores, overall_score, overall_grade, passed, retry_stats, total_cost_usd, weakest_phase, strongest_phase
		 FROM reports WHERE project_id = $1 AND run_id = $2`, projectID, runID)
	r, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.GenerationReport{}, &store.ErrNotFound{Kind: "report", ID: runID}
	}
	return r, err
}

func (s *Store) ListReports(ctx context.Context, projectID string, limit int) ([]models.GenerationReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, project_id, phase_scores, overall_score, overall_grade, passed, retry_stats, total_cost_usd, weakest_phase, strongest_phase
		 FROM reports WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.GenerationReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE reports, operational_logs, run_events, artifacts, runs, specs, projects CASCADE`)
	return err
}
