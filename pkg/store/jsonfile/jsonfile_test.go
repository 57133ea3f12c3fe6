package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/store"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cml-pipeline.json")
	s, err := New(path)
	require.NoError(t, err)
	return s
}

func TestProjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)

	project := models.Project{ID: "proj-1", Name: "The Voss Manor", CreatedAt: time.Now(), Status: models.ProjectStatusIdle}
	require.NoError(t, s.CreateProject(ctx, project))

	got, err := s.GetProject(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "The Voss Manor", got.Name)

	_, err = s.GetProject(ctx, "missing")
	require.Error(t, err)
	assert.IsType(t, &store.ErrNotFound{}, err)
}

func TestArtifactVersioningKeepsLatestByVersion(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)
	key := models.Key{ProjectID: "proj-1", Type: models.ArtifactSetting}

	require.NoError(t, s.PutArtifact(ctx, models.Artifact{ProjectID: "proj-1", Type: models.ArtifactSetting, Version: 1, Payload: []byte(`{"v":1}`)}))
	require.NoError(t, s.PutArtifact(ctx, models.Artifact{ProjectID: "proj-1", Type: models.ArtifactSetting, Version: 2, Payload: []byte(`{"v":2}`)}))

	latest, err := s.GetLatestArtifact(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	v1, err := s.GetArtifactVersion(ctx, key, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	all, err := s.ListArtifactVersions(ctx, key)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, 2, all[1].Version)
}

func TestRunEventsAssignMonotonicOffsetsAndSupportCatchup(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)

	first, err := s.AppendRunEvent(ctx, models.RunEvent{RunID: "run-1", Name: models.StepSpecReady})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Step)
	_, err = s.AppendRunEvent(ctx, models.RunEvent{RunID: "run-1", Name: models.StepSettingDone})
	require.NoError(t, err)
	third, err := s.AppendRunEvent(ctx, models.RunEvent{RunID: "run-1", Name: models.StepCastDone})
	require.NoError(t, err)
	assert.Equal(t, 2, third.Step)

	all, err := s.ListRunEvents(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 0, all[0].Step)
	assert.Equal(t, 2, all[2].Step)

	fromOne, err := s.ListRunEvents(ctx, "run-1", 1)
	require.NoError(t, err)
	require.Len(t, fromOne, 2)
	assert.Equal(t, models.StepSettingDone, fromOne[0].Name)
}

func TestActiveRunFindsRunningRunForProject(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)

	require.NoError(t, s.CreateRun(ctx, models.Run{ID: "run-1", ProjectID: "proj-1", Status: models.RunStatusRunning}))

	run, ok, err := s.ActiveRun(ctx, "proj-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", run.ID)

	require.NoError(t, s.UpdateRun(ctx, models.Run{ID: "run-1", ProjectID: "proj-1", Status: models.RunStatusSucceeded}))
	_, ok, err = s.ActiveRun(ctx, "proj-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReportsListedMostRecentFirstAndRespectLimit(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)

	require.NoError(t, s.PutReport(ctx, models.GenerationReport{RunID: "run-1", ProjectID: "proj-1", OverallScore: 70}))
	require.NoError(t, s.PutReport(ctx, models.GenerationReport{RunID: "run-2", ProjectID: "proj-1", OverallScore: 90}))

	reports, err := s.ListReports(ctx, "proj-1", 1)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "run-2", reports[0].RunID)

	report, err := s.GetReport(ctx, "proj-1", "run-1")
	require.NoError(t, err)
	assert.InDelta(t, 70, report.OverallScore, 1e-9)
}

func TestNewCleansStaleTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cml-pipeline.json")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateProject(context.Background(), models.Project{ID: "p1"}))

	// A temp file left by an interrupted write is removed by the next
	// New(), which must still load the persisted data.
	stale := path + ".tmp-stale"
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o644))
	reopened, err := New(path)
	require.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = reopened.GetProject(context.Background(), "p1")
	require.NoError(t, err)
}

func TestClearWipesEverything(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)
	require.NoError(t, s.CreateProject(ctx, models.Project{ID: "p1"}))

	require.NoError(t, s.Clear(ctx))

	_, err := s.GetProject(ctx, "p1")
	require.Error(t, err)
}
