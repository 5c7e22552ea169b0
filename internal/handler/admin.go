package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/sheet-reservation/internal/account"
    "github.com/iliyamo/sheet-reservation/internal/catalog"
    "github.com/iliyamo/sheet-reservation/internal/engine"
    "github.com/iliyamo/sheet-reservation/internal/model"
    "github.com/iliyamo/sheet-reservation/internal/report"
    "github.com/iliyamo/sheet-reservation/internal/utils"
)

// AdminHandler serves the administrator API: sessions, event management,
// sales reports and counter reconciliation.  All routes but Login assume
// RequireRole(ADMIN) ran before them.
type AdminHandler struct {
    Accounts *account.Service
    Catalog  *catalog.Service
    Engine   *engine.Engine
    Reports  report.Store
    Sessions Sessions
    Log      *zap.Logger
}

func NewAdminHandler(accounts *account.Service, cat *catalog.Service, e *engine.Engine, reports report.Store, sessions Sessions, log *zap.Logger) *AdminHandler {
    if accounts == nil || cat == nil || e == nil || reports == nil {
        panic("nil dependency passed to NewAdminHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &AdminHandler{Accounts: accounts, Catalog: cat, Engine: e, Reports: reports, Sessions: sessions, Log: log}
}

// Login handles POST /admin/api/actions/login.
func (h *AdminHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return failWith(c, http.StatusBadRequest, "invalid_input")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    id, err := h.Accounts.AdminLogin(ctx, req.LoginName, req.Password)
    if err != nil {
        return fail(c, h.Log, err)
    }
    if err := h.Sessions.issue(c, id.ID, id.Nickname, utils.RoleAdmin); err != nil {
        return fail(c, h.Log, err)
    }
    return nil
}

// Logout handles POST /admin/api/actions/logout.
func (h *AdminHandler) Logout(c echo.Context) error {
    if err := h.Sessions.end(c); err != nil {
        return fail(c, h.Log, err)
    }
    return nil
}

// ListEvents handles GET /admin/api/events: every event with price and flags.
func (h *AdminHandler) ListEvents(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    views, err := h.Engine.ListEvents(ctx, nil)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, views)
}

type createEventReq struct {
    Title  string `json:"title"`
    Public bool   `json:"public"`
    Price  int64  `json:"price"`
}

// CreateEvent handles POST /admin/api/events.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
    var req createEventReq
    if err := c.Bind(&req); err != nil {
        return failWith(c, http.StatusBadRequest, "invalid_input")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    v, err := h.Catalog.Create(ctx, req.Title, req.Public, req.Price)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, v)
}

// GetEvent handles GET /admin/api/events/:id, public or not.
func (h *AdminHandler) GetEvent(c echo.Context) error {
    id := eventID(c)
    if id == 0 {
        return failWith(c, http.StatusNotFound, "not_found")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    v, err := h.Engine.GetEventView(ctx, id, 0, true)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, v)
}

type editEventReq struct {
    Public bool `json:"public"`
    Closed bool `json:"closed"`
}

// EditEvent handles POST /admin/api/events/:id/actions/edit.
func (h *AdminHandler) EditEvent(c echo.Context) error {
    id := eventID(c)
    if id == 0 {
        return failWith(c, http.StatusNotFound, "not_found")
    }
    var req editEventReq
    if err := c.Bind(&req); err != nil {
        return failWith(c, http.StatusBadRequest, "invalid_input")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    v, err := h.Catalog.Edit(ctx, id, req.Public, req.Closed)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, v)
}

// EventSales handles GET /admin/api/reports/events/:id/sales.
func (h *AdminHandler) EventSales(c echo.Context) error {
    id := eventID(c)
    if id == 0 {
        return failWith(c, http.StatusNotFound, "not_found")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if _, err := h.Engine.GetEventView(ctx, id, 0, false); err != nil {
        return fail(c, h.Log, err)
    }
    rows, err := h.Reports.SalesRows(ctx, id)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return h.csv(c, rows)
}

// Sales handles GET /admin/api/reports/sales, every event at once.
func (h *AdminHandler) Sales(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    rows, err := h.Reports.AllSalesRows(ctx)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return h.csv(c, rows)
}

func (h *AdminHandler) csv(c echo.Context, rows []model.SalesRow) error {
    res := c.Response()
    res.Header().Set(echo.HeaderContentType, "text/csv; charset=UTF-8")
    res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="report.csv"`)
    res.WriteHeader(http.StatusOK)
    if err := report.WriteCSV(res, rows); err != nil {
        // the status is already sent; all that is left is to log
        h.Log.Error("write sales report", zap.Int("rows", len(rows)), zap.Error(err))
    }
    return nil
}

// RebuildCounters handles POST /admin/api/actions/rebuild-counters.
func (h *AdminHandler) RebuildCounters(c echo.Context) error {
    if err := h.Engine.RebuildCounters(c.Request().Context()); err != nil {
        return fail(c, h.Log, err)
    }
    return c.NoContent(http.StatusNoContent)
}
