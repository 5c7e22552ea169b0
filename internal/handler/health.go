package handler // declare the package name; contains HTTP handlers

import (
    "context"  // bounds the store ping
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health returns a health‑check endpoint used by load balancers and
// monitoring systems.  It answers 200 "ok" when ping succeeds and 503
// otherwise.  A nil ping only reports that the process is serving.
func Health(ping func(ctx context.Context) error) echo.HandlerFunc {
    return func(c echo.Context) error {
        if ping != nil {
            ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
            defer cancel()
            if err := ping(ctx); err != nil {
                return c.String(http.StatusServiceUnavailable, "store unavailable")
            }
        }
        return c.String(http.StatusOK, "ok")
    }
}
