package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// clearStoreHandler handles POST /admin/clear-store. Intended for test
// fixtures and local development, not a production operation.
func (s *Server) clearStoreHandler(c *echo.Context) error {
	if err := s.store.Clear(c.Request().Context()); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
