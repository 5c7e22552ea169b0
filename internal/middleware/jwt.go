package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "strings" // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/sheet-reservation/internal/utils" // token parsing
)

// Context keys set by JWTAuth.
const (
    ctxUserID   = "user_id"
    ctxRole     = "role"
    ctxTokenID  = "token_id"
    ctxTokenExp = "token_exp"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the token's subject and role into the request context.  A
// request without a usable token passes through anonymously; routes that
// need a caller add RequireRole after it.  A token revoked by logout is
// treated as absent.
func JWTAuth(secret string, revoked Revocations) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return next(c)
            }
            claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return next(c)
            }
            if revoked != nil && claims.ID != "" {
                gone, err := revoked.Revoked(c.Request().Context(), claims.ID)
                // fail closed: an unreachable revocation list rejects the token
                if err != nil || gone {
                    return next(c)
                }
            }
            c.Set(ctxUserID, claims.Subject)
            c.Set(ctxRole, claims.Role)
            c.Set(ctxTokenID, claims.ID)
            c.Set(ctxTokenExp, claims.Exp)
            return next(c)
        }
    }
}
