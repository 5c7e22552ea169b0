package middleware

// identity.go reads back what JWTAuth stored in the Echo context.

import (
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
)

// UserID returns the authenticated subject, false for anonymous requests.
// For administrators it is the administrator id.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the role claim of the caller, "" when anonymous.
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

// Token returns the id and expiry of the caller's token.
func Token(c echo.Context) (string, time.Time, bool) {
    id, ok := c.Get(ctxTokenID).(string)
    exp, _ := c.Get(ctxTokenExp).(time.Time)
    return id, exp, ok && id != ""
}

// userKey identifies the caller for rate limiting; "guest" when anonymous.
func userKey(c echo.Context) string {
    id, ok := UserID(c)
    if !ok {
        return "guest"
    }
    return Role(c) + "-" + strconv.FormatUint(id, 10)
}
