package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // http package defines standard HTTP status codes

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// RequireRole returns a middleware function that enforces that the
// authenticated caller has one of the specified roles.  It assumes JWTAuth
// ran before it.  A caller that is anonymous or holds another role is
// rejected with 401 and the given error code, e.g. "login_required".
func RequireRole(code string, roles ...string) echo.MiddlewareFunc {
    // Build a set of allowed roles for constant‑time lookups.
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if _, ok := UserID(c); !ok || !allowed[Role(c)] {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": code})
            }
            return next(c)
        }
    }
}
