package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// eventPollInterval and eventPollTimeout bound the long-poll events
// endpoint: a reconnecting client without WebSocket support gets a
// response as soon as a new event lands, or an empty batch after
// eventPollTimeout elapses, whichever comes first.
const (
	eventPollInterval = 500 * time.Millisecond
	eventPollTimeout  = 25 * time.Second
)

// startRunHandler handles POST /projects/:id/run.
func (s *Server) startRunHandler(c *echo.Context) error {
	run, err := s.orchestrator.StartRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusAccepted, run)
}

// projectStatusHandler handles GET /projects/:id/status.
func (s *Server) projectStatusHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return mapError(err)
	}

	resp := StatusResponse{Project: project}
	run, active, err := s.store.ActiveRun(ctx, projectID)
	if err != nil {
		return mapError(err)
	}
	if active {
		resp.ActiveRun = &run
	}
	return c.JSON(http.StatusOK, resp)
}

// projectEventsHandler handles GET /projects/:id/events — a long-poll
// stream of the project's current active run, delivering events from an
// optional ?since= offset. Reconnecting clients pass the last offset
// they saw so they never miss or duplicate a frame.
func (s *Server) projectEventsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")

	run, active, err := s.store.ActiveRun(ctx, projectID)
	if err != nil {
		return mapError(err)
	}
	if !active {
		return c.JSON(http.StatusOK, []models.RunEvent{})
	}

	since := 0
	if v := c.QueryParam("since"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			since = n
		}
	}

	events, err := s.pollRunEvents(ctx, run.ID, since)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, events)
}

// runEventsHandler handles GET /runs/:id/events — the full, unbounded
// history for a run, regardless of whether it is still active.
func (s *Server) runEventsHandler(c *echo.Context) error {
	events, err := s.store.ListRunEvents(c.Request().Context(), c.Param("id"), 0)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, events)
}

// pollRunEvents waits up to eventPollTimeout for at least one event past
// fromOffset to appear, checking every eventPollInterval, then returns
// whatever is available (possibly empty, if the run produced nothing new
// before the deadline). This realizes spec.md §6's "long-lived HTTP
// response" contract for clients without WebSocket support, without
// holding the connection open indefinitely.
func (s *Server) pollRunEvents(ctx context.Context, runID string, fromOffset int) ([]models.RunEvent, error) {
	deadline := time.Now().Add(eventPollTimeout)
	for {
		events, err := s.store.ListRunEvents(ctx, runID, fromOffset)
		if err != nil {
			return nil, err
		}
		if len(events) > 0 || time.Now().After(deadline) {
			return events, nil
		}
		select {
		case <-ctx.Done():
			return events, nil
		case <-time.After(eventPollInterval):
		}
	}
}
