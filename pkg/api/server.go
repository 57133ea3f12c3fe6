// Package api is the HTTP surface of the generation pipeline: the
// REST/WebSocket routes spec.md §6 describes, thin handlers that
// translate requests into orchestrator and store calls and translate
// their errors back into HTTP status codes. Grounded on the teacher's
// echo/v5-based pkg/api (pkg/api/server.go, handler_*.go) — its
// gin-based handlers.go is superseded teacher scaffolding, not the
// pattern this package follows.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/andylelli/cml-01-sub003/pkg/config"
	"github.com/andylelli/cml-01-sub003/pkg/events"
	"github.com/andylelli/cml-01-sub003/pkg/orchestrator"
	"github.com/andylelli/cml-01-sub003/pkg/store"
)

// Server is the HTTP API server.
type Server struct {
	echo         *echo.Echo
	httpServer   *http.Server
	cfg          *config.Config
	store        store.Store
	orchestrator *orchestrator.Orchestrator
	connManager  *events.ConnectionManager
}

// NewServer creates a new API server with Echo v5 and registers every
// route from spec.md §6. connManager may be nil to run headless (no
// WebSocket fan-out; events are still durably appended by the
// orchestrator and servable through the long-poll and full-history
// endpoints).
func NewServer(cfg *config.Config, st store.Store, orch *orchestrator.Orchestrator, connManager *events.ConnectionManager) *Server {
	e := echo.New()

	s := &Server{
		echo:         e,
		cfg:          cfg,
		store:        st,
		orchestrator: orch,
		connManager:  connManager,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every HTTP route from spec.md §6.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.Logger())
	// Server-wide body size limit: generation specs and regenerate/export
	// bodies are small JSON documents, never multi-MB payloads.
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/admin/clear-store", s.clearStoreHandler)

	s.echo.GET("/reports/aggregate", s.aggregateReportsHandler)

	s.echo.POST("/projects", s.createProjectHandler)
	s.echo.GET("/projects", s.listProjectsHandler)
	s.echo.GET("/projects/:id", s.getProjectHandler)

	s.echo.POST("/projects/:id/specs", s.createSpecHandler)
	s.echo.GET("/specs/:id", s.getSpecHandler)

	s.echo.POST("/projects/:id/run", s.startRunHandler)
	s.echo.GET("/projects/:id/status", s.projectStatusHandler)
	s.echo.GET("/projects/:id/events", s.projectEventsHandler)
	s.echo.GET("/runs/:id/events", s.runEventsHandler)
	s.echo.GET("/ws", s.wsHandler)

	s.echo.POST("/projects/:id/regenerate", s.regenerateHandler)
	s.echo.POST("/projects/:id/export", s.exportHandler)

	s.echo.GET("/projects/:id/runs/:runId/report", s.runReportHandler)
	s.echo.GET("/projects/:id/reports/history", s.reportHistoryHandler)

	// Dynamic latest-artifact route, registered last: static routes above
	// (specs, run, status, events, regenerate, export, runs/:runId/report,
	// reports/history) take priority over this wildcard in Echo's router,
	// the same ordering the teacher relies on for its dashboard SPA
	// fallback (pkg/api/server.go's setupDashboardRoutes comment).
	s.echo.GET("/projects/:id/:artifactType/latest", s.latestArtifactHandler, cmlModeGate())
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{Status: "healthy"})
}
