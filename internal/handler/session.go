package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sheet-reservation/internal/middleware"
    "github.com/iliyamo/sheet-reservation/internal/utils"
)

// Sessions issues access tokens at login and revokes them at logout.
type Sessions struct {
    Secret  string
    TTLMin  int
    Revoked middleware.Revocations
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

type loginResp struct {
    ID       uint64    `json:"id"`
    Nickname string    `json:"nickname"`
    Access   tokenPart `json:"access"`
}

type loginReq struct {
    LoginName string `json:"login_name"`
    Password  string `json:"password"`
}

func (s Sessions) issue(c echo.Context, id uint64, nickname, role string) error {
    access, err := utils.NewAccessToken(s.Secret, id, role, s.TTLMin)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, loginResp{
        ID:       id,
        Nickname: nickname,
        Access:   tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// end revokes the caller's token until it expires.  It answers 204.
func (s Sessions) end(c echo.Context) error {
    id, exp, ok := middleware.Token(c)
    if ok && s.Revoked != nil {
        if err := s.Revoked.Revoke(c.Request().Context(), id, exp); err != nil {
            return err
        }
    }
    return c.NoContent(http.StatusNoContent)
}
