package handler // handler defines http handlers for webhook ingestion and the operator API

import (
    "errors"   // errors matches sentinel values from lower layers
    "net/http" // http defines status codes
    "strconv"  // strconv converts path params to integers

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/boxoffice-sync/internal/autolink"
    "github.com/iliyamo/boxoffice-sync/internal/provider"
    "github.com/iliyamo/boxoffice-sync/internal/repository"
    "github.com/iliyamo/boxoffice-sync/internal/service"
)

// errInvalidID is returned by pathID for missing or non-numeric ids.
var errInvalidID = errors.New("invalid id")

// pathID reads a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
    n, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || n == 0 {
        return 0, errInvalidID
    }
    return n, nil
}

// errorStatus maps engine errors onto HTTP status codes.
func errorStatus(err error) int {
    switch {
    case errors.Is(err, repository.ErrNotFound):
        return http.StatusNotFound
    case errors.Is(err, autolink.ErrAlreadyLinked), errors.Is(err, service.ErrProviderInactive):
        return http.StatusConflict
    case errors.Is(err, provider.ErrManualProvider), errors.Is(err, service.ErrUnknownKind):
        return http.StatusUnprocessableEntity
    case provider.IsRateLimit(err):
        return http.StatusServiceUnavailable
    case provider.IsTopLevel(err):
        return http.StatusBadGateway
    }
    return http.StatusInternalServerError
}

// fail writes err as a JSON error body with the mapped status.
func fail(c echo.Context, err error) error {
    return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
}
