package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/sheet-reservation/internal/account"
    "github.com/iliyamo/sheet-reservation/internal/catalog"
    "github.com/iliyamo/sheet-reservation/internal/engine"
    "github.com/iliyamo/sheet-reservation/internal/repository"
)

// errorStatus pairs a sentinel with the status it is answered with.  The
// wire code is the sentinel's text.
type errorStatus struct {
    err    error
    status int
}

var statuses = []errorStatus{
    {engine.ErrInvalidEvent, http.StatusNotFound},
    {engine.ErrInvalidRank, http.StatusBadRequest},
    {engine.ErrInvalidSeat, http.StatusNotFound},
    {engine.ErrSoldOut, http.StatusConflict},
    {engine.ErrNotReserved, http.StatusBadRequest},
    {engine.ErrNotPermitted, http.StatusForbidden},
    {engine.ErrNotFound, http.StatusNotFound},
    {engine.ErrStoreUnavailable, http.StatusServiceUnavailable},
    {catalog.ErrEventNotFound, http.StatusNotFound},
    {catalog.ErrCannotEditClosed, http.StatusBadRequest},
    {catalog.ErrCannotClosePublic, http.StatusBadRequest},
    {catalog.ErrInvalidEvent, http.StatusBadRequest},
    {account.ErrInvalidInput, http.StatusBadRequest},
    {account.ErrDuplicated, http.StatusConflict},
    {account.ErrAuthenticationFailed, http.StatusUnauthorized},
    {account.ErrNotFound, http.StatusNotFound},
    {repository.ErrForbidden, http.StatusForbidden},
}

// fail writes the JSON error answer for err.  Errors that are not one of
// the known kinds are logged and answered with 500 "unknown".
func fail(c echo.Context, log *zap.Logger, err error) error {
    for _, s := range statuses {
        if errors.Is(err, s.err) {
            if s.status >= 500 {
                log.Warn("request failed", zap.String("route", c.Path()), zap.Error(err))
            }
            return c.JSON(s.status, echo.Map{"error": s.err.Error()})
        }
    }
    log.Error("unexpected error", zap.String("route", c.Path()), zap.Error(err))
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unknown"})
}

// failWith answers with status and code directly.
func failWith(c echo.Context, status int, code string) error {
    return c.JSON(status, echo.Map{"error": code})
}

// ErrorHandler renders errors that reach echo (unknown routes, recovered
// panics) in the same {"error": code} shape as the handlers.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
    return func(err error, c echo.Context) {
        if c.Response().Committed {
            return
        }
        status, code := http.StatusInternalServerError, "unknown"
        var he *echo.HTTPError
        if errors.As(err, &he) {
            status = he.Code
            switch status {
            case http.StatusNotFound:
                code = "not_found"
            case http.StatusMethodNotAllowed:
                code = "method_not_allowed"
            case http.StatusRequestEntityTooLarge:
                code = "too_large"
            case http.StatusBadRequest:
                code = "invalid_input"
            }
        }
        if status >= 500 {
            log.Error("unhandled error", zap.String("route", c.Path()), zap.Error(err))
        }
        if c.Request().Method == http.MethodHead {
            _ = c.NoContent(status)
            return
        }
        _ = c.JSON(status, echo.Map{"error": code})
    }
}
