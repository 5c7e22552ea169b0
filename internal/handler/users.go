package handler

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/sheet-reservation/internal/account"
    "github.com/iliyamo/sheet-reservation/internal/middleware"
    "github.com/iliyamo/sheet-reservation/internal/utils"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

// UserHandler serves registration, login and the profile page.
type UserHandler struct {
    Accounts *account.Service
    Sessions Sessions
    Log      *zap.Logger
}

func NewUserHandler(accounts *account.Service, sessions Sessions, log *zap.Logger) *UserHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &UserHandler{Accounts: accounts, Sessions: sessions, Log: log}
}

type registerReq struct {
    Nickname  string `json:"nickname"`
    LoginName string `json:"login_name"`
    Password  string `json:"password"`
}

// Register handles POST /api/users and answers 201 {id, nickname}.
func (h *UserHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return failWith(c, http.StatusBadRequest, "invalid_input")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    id, err := h.Accounts.Register(ctx, req.Nickname, req.LoginName, req.Password)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, id)
}

// Login handles POST /api/actions/login.
func (h *UserHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return failWith(c, http.StatusBadRequest, "invalid_input")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    id, err := h.Accounts.Login(ctx, req.LoginName, req.Password)
    if err != nil {
        return fail(c, h.Log, err)
    }
    if err := h.Sessions.issue(c, id.ID, id.Nickname, utils.RoleUser); err != nil {
        return fail(c, h.Log, err)
    }
    return nil
}

// Logout handles POST /api/actions/logout.
func (h *UserHandler) Logout(c echo.Context) error {
    if err := h.Sessions.end(c); err != nil {
        return fail(c, h.Log, err)
    }
    return nil
}

// Profile handles GET /api/users/:id.  Only the user may read it.
func (h *UserHandler) Profile(c echo.Context) error {
    userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || userID == 0 {
        return failWith(c, http.StatusNotFound, "not_found")
    }
    requester, _ := middleware.UserID(c)

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    p, err := h.Accounts.Profile(ctx, userID, requester)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, p)
}
