package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/andylelli/cml-01-sub003/pkg/apperror"
	"github.com/andylelli/cml-01-sub003/pkg/store"
)

// storeNotFoundKinds maps store.ErrNotFound's free-text Kind field to the
// apperror.Kind an API client expects, since the store layer stays
// apperror-free (pkg/store's package doc) and only pkg/api translates.
var storeNotFoundKinds = map[string]apperror.Kind{
	"project": apperror.KindProjectNotFound,
	"spec":    apperror.KindProjectNotFound,
	"run":     apperror.KindArtifactNotFound,
	"artifact": apperror.KindArtifactNotFound,
	"report":  apperror.KindArtifactNotFound,
}

// mapError turns any error this package's handlers encounter into an
// echo.HTTPError, grounded on the teacher's mapServiceError
// (pkg/api/errors.go): one switch from an internal error vocabulary to
// an HTTP status, with everything unrecognized logged and folded into a
// generic 500 rather than leaking internals to the client.
func mapError(err error) *echo.HTTPError {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(apperror.HTTPStatus(appErr.Kind), appErr.Message)
	}

	var notFound *store.ErrNotFound
	if errors.As(err, &notFound) {
		kind, ok := storeNotFoundKinds[notFound.Kind]
		if !ok {
			kind = apperror.KindArtifactNotFound
		}
		return echo.NewHTTPError(apperror.HTTPStatus(kind), notFound.Error())
	}

	slog.Error("unhandled api error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
