package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andylelli/cml-01-sub003/pkg/agent"
	"github.com/andylelli/cml-01-sub003/pkg/apperror"
	"github.com/andylelli/cml-01-sub003/pkg/config"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/orchestrator"
	"github.com/andylelli/cml-01-sub003/pkg/store"
	"github.com/andylelli/cml-01-sub003/pkg/store/jsonfile"
)

// newTestServer builds a Server against a fresh jsonfile.Store and an
// orchestrator with no agents wired (sufficient for every handler tested
// here except a full run, which belongs to pkg/orchestrator's own test
// suite). withCredential controls whether StartRun can proceed past its
// credential check.
func newTestServer(t *testing.T, withCredential bool) (*Server, *jsonfile.Store) {
	t.Helper()
	st, err := jsonfile.New(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)

	cfg := config.Load()
	if withCredential {
		cfg.LLMAPIKey = "test-key"
	}

	orch := orchestrator.New(st, nil, nil, nil, map[agent.ID]agent.Agent{}, nil, cfg)
	s := &Server{echo: echo.New(), cfg: cfg, store: st, orchestrator: orch}
	return s, st
}

func newCtx(method, target, body string) (*echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCreateProjectHandler(t *testing.T) {
	s, _ := newTestServer(t, false)

	t.Run("success", func(t *testing.T) {
		c, rec := newCtx(http.MethodPost, "/projects", `{"name":"The Tideward Ledger"}`)
		require.NoError(t, s.createProjectHandler(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var project models.Project
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
		assert.Equal(t, "The Tideward Ledger", project.Name)
		assert.Equal(t, models.ProjectStatusIdle, project.Status)
		assert.NotEmpty(t, project.ID)
	})

	t.Run("missing name", func(t *testing.T) {
		c, _ := newCtx(http.MethodPost, "/projects", `{"name":""}`)
		err := s.createProjectHandler(c)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})
}

func TestGetProjectHandler_NotFound(t *testing.T) {
	s, _ := newTestServer(t, false)

	c, _ := newCtx(http.MethodGet, "/projects/missing", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := s.getProjectHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func seedTestProject(t *testing.T, st *jsonfile.Store) models.Project {
	t.Helper()
	project := models.Project{ID: "proj-1", Name: "The Tideward Ledger", Status: models.ProjectStatusIdle}
	require.NoError(t, st.CreateProject(context.Background(), project))
	return project
}

func TestCreateSpecHandler(t *testing.T) {
	s, st := newTestServer(t, false)
	project := seedTestProject(t, st)

	body := `{"decade":"1930s","location_preset":"coastal manor","tone":"melancholy","theme":"inheritance","cast_size":4,"primary_axis":"identity","target_length":"short"}`

	t.Run("first spec is version 1", func(t *testing.T) {
		c, rec := newCtx(http.MethodPost, "/projects/proj-1/specs", body)
		c.SetParamNames("id")
		c.SetParamValues(project.ID)
		require.NoError(t, s.createSpecHandler(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var spec models.Spec
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
		assert.Equal(t, 1, spec.Version)
	})

	t.Run("second spec increments version", func(t *testing.T) {
		c, rec := newCtx(http.MethodPost, "/projects/proj-1/specs", body)
		c.SetParamNames("id")
		c.SetParamValues(project.ID)
		require.NoError(t, s.createSpecHandler(c))

		var spec models.Spec
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
		assert.Equal(t, 2, spec.Version)
	})

	t.Run("invalid primary_axis rejected", func(t *testing.T) {
		bad := `{"decade":"1930s","location_preset":"manor","tone":"dark","theme":"greed","cast_size":4,"primary_axis":"bogus","target_length":"short"}`
		c, _ := newCtx(http.MethodPost, "/projects/proj-1/specs", bad)
		c.SetParamNames("id")
		c.SetParamValues(project.ID)
		err := s.createSpecHandler(c)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})

	t.Run("unknown project rejected", func(t *testing.T) {
		c, _ := newCtx(http.MethodPost, "/projects/ghost/specs", body)
		c.SetParamNames("id")
		c.SetParamValues("ghost")
		err := s.createSpecHandler(c)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}

func TestStartRunHandler_NoCredential(t *testing.T) {
	s, st := newTestServer(t, false)
	project := seedTestProject(t, st)

	c, _ := newCtx(http.MethodPost, "/projects/proj-1/run", "")
	c.SetParamNames("id")
	c.SetParamValues(project.ID)

	err := s.startRunHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func TestProjectStatusHandler_NoActiveRun(t *testing.T) {
	s, st := newTestServer(t, false)
	project := seedTestProject(t, st)

	c, rec := newCtx(http.MethodGet, "/projects/proj-1/status", "")
	c.SetParamNames("id")
	c.SetParamValues(project.ID)

	require.NoError(t, s.projectStatusHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, project.ID, resp.Project.ID)
	assert.Nil(t, resp.ActiveRun)
}

func TestLatestArtifactHandler(t *testing.T) {
	s, st := newTestServer(t, false)
	project := seedTestProject(t, st)

	t.Run("unknown type rejected", func(t *testing.T) {
		c, _ := newCtx(http.MethodGet, "/projects/proj-1/bogus/latest", "")
		c.SetParamNames("id", "artifactType")
		c.SetParamValues(project.ID, "bogus")
		err := s.latestArtifactHandler(c)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})

	t.Run("not yet produced", func(t *testing.T) {
		c, _ := newCtx(http.MethodGet, "/projects/proj-1/setting/latest", "")
		c.SetParamNames("id", "artifactType")
		c.SetParamValues(project.ID, string(models.ArtifactSetting))
		err := s.latestArtifactHandler(c)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})

	t.Run("found", func(t *testing.T) {
		artifact := models.Artifact{ProjectID: project.ID, Type: models.ArtifactSetting, Version: 1, Payload: json.RawMessage(`{"description":"a fog-bound manor"}`)}
		require.NoError(t, st.PutArtifact(context.Background(), artifact))

		c, rec := newCtx(http.MethodGet, "/projects/proj-1/setting/latest", "")
		c.SetParamNames("id", "artifactType")
		c.SetParamValues(project.ID, string(models.ArtifactSetting))
		require.NoError(t, s.latestArtifactHandler(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCMLModeGate(t *testing.T) {
	passthrough := func(c *echo.Context) error { return c.NoContent(http.StatusOK) }
	gated := cmlModeGate()(passthrough)

	t.Run("non-gated type always passes", func(t *testing.T) {
		c, rec := newCtx(http.MethodGet, "/projects/proj-1/setting/latest", "")
		c.SetParamNames("id", "artifactType")
		c.SetParamValues("proj-1", string(models.ArtifactSetting))
		require.NoError(t, gated(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("gated type without header rejected", func(t *testing.T) {
		c, _ := newCtx(http.MethodGet, "/projects/proj-1/cml/latest", "")
		c.SetParamNames("id", "artifactType")
		c.SetParamValues("proj-1", string(models.ArtifactCML))
		err := gated(c)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusForbidden, he.Code)
	})

	t.Run("gated type with advanced header passes", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/projects/proj-1/cml/latest", nil)
		req.Header.Set(cmlModeHeader, string(models.ModeAdvanced))
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id", "artifactType")
		c.SetParamValues("proj-1", string(models.ArtifactCML))

		require.NoError(t, gated(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRegenerateHandler_UnsupportedScope(t *testing.T) {
	s, st := newTestServer(t, true)
	project := seedTestProject(t, st)

	c, _ := newCtx(http.MethodPost, "/projects/proj-1/regenerate", `{"scope":"cml"}`)
	c.SetParamNames("id")
	c.SetParamValues(project.ID)

	err := s.regenerateHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestRegenerateHandler_MissingScope(t *testing.T) {
	s, st := newTestServer(t, true)
	project := seedTestProject(t, st)

	c, _ := newCtx(http.MethodPost, "/projects/proj-1/regenerate", `{}`)
	c.SetParamNames("id")
	c.SetParamValues(project.ID)

	err := s.regenerateHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestExportHandler_SkipsMissingArtifacts(t *testing.T) {
	s, st := newTestServer(t, false)
	project := seedTestProject(t, st)

	c, rec := newCtx(http.MethodPost, "/projects/proj-1/export", `{"types":["setting","cast"]}`)
	c.SetParamNames("id")
	c.SetParamValues(project.ID)

	require.NoError(t, s.exportHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var bundle ExportBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Empty(t, bundle.Artifacts)
}

func TestExportHandler_UnknownTypeRejected(t *testing.T) {
	s, st := newTestServer(t, false)
	project := seedTestProject(t, st)

	c, _ := newCtx(http.MethodPost, "/projects/proj-1/export", `{"types":["bogus"]}`)
	c.SetParamNames("id")
	c.SetParamValues(project.ID)

	err := s.exportHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestClearStoreHandler(t *testing.T) {
	s, st := newTestServer(t, false)
	seedTestProject(t, st)

	c, rec := newCtx(http.MethodPost, "/admin/clear-store", "")
	require.NoError(t, s.clearStoreHandler(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	projects, err := st.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestReportHistoryHandler_Empty(t *testing.T) {
	s, st := newTestServer(t, false)
	project := seedTestProject(t, st)

	c, rec := newCtx(http.MethodGet, "/projects/proj-1/reports/history", "")
	c.SetParamNames("id")
	c.SetParamValues(project.ID)

	require.NoError(t, s.reportHistoryHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var reports []models.GenerationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	assert.Empty(t, reports)
}

func TestAggregateReportsHandler_NoReports(t *testing.T) {
	s, st := newTestServer(t, false)
	seedTestProject(t, st)

	c, rec := newCtx(http.MethodGet, "/reports/aggregate", "")
	require.NoError(t, s.aggregateReportsHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp AggregateReportsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Reports)
}

func TestMapError(t *testing.T) {
	t.Run("apperror translated via HTTPStatus", func(t *testing.T) {
		he := mapError(apperror.New(apperror.KindCredentialMissing, "no LLM API key configured"))
		assert.Equal(t, http.StatusServiceUnavailable, he.Code)
	})

	t.Run("store.ErrNotFound translated via storeNotFoundKinds", func(t *testing.T) {
		he := mapError(&store.ErrNotFound{Kind: "artifact", ID: "a1"})
		assert.Equal(t, http.StatusNotFound, he.Code)
	})

	t.Run("store.ErrNotFound with unknown kind falls back to artifact-not-found", func(t *testing.T) {
		he := mapError(&store.ErrNotFound{Kind: "mystery", ID: "x"})
		assert.Equal(t, http.StatusNotFound, he.Code)
	})

	t.Run("unrecognized error becomes 500", func(t *testing.T) {
		he := mapError(assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, he.Code)
	})
}
