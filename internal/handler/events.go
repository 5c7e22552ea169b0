package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/sheet-reservation/internal/engine"
    "github.com/iliyamo/sheet-reservation/internal/middleware"
    "github.com/iliyamo/sheet-reservation/internal/utils"
)

// EventHandler serves the public event pages and the reserve and cancel
// actions of logged in users.
type EventHandler struct {
    Engine *engine.Engine
    Log    *zap.Logger
}

func NewEventHandler(e *engine.Engine, log *zap.Logger) *EventHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &EventHandler{Engine: e, Log: log}
}

// eventID parses the :id path parameter; 0 when malformed.
func eventID(c echo.Context) uint64 {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return 0
    }
    return id
}

// viewer returns the id of the logged in user, 0 for anyone else.
func viewer(c echo.Context) uint64 {
    if middleware.Role(c) != utils.RoleUser {
        return 0
    }
    id, _ := middleware.UserID(c)
    return id
}

// List handles GET /api/events: public events without price and flags.
func (h *EventHandler) List(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    views, err := h.Engine.ListEvents(ctx, engine.PublicOnly)
    if err != nil {
        return fail(c, h.Log, err)
    }
    out := make([]engine.PublicEventView, 0, len(views))
    for _, v := range views {
        out = append(out, v.Sanitize())
    }
    return c.JSON(http.StatusOK, out)
}

// Get handles GET /api/events/:id.  Non public events are not found.
func (h *EventHandler) Get(c echo.Context) error {
    id := eventID(c)
    if id == 0 {
        return failWith(c, http.StatusNotFound, "not_found")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    v, err := h.Engine.GetEventView(ctx, id, viewer(c), true)
    if err != nil {
        return fail(c, h.Log, err)
    }
    if !v.Public {
        return failWith(c, http.StatusNotFound, "not_found")
    }
    return c.JSON(http.StatusOK, v.Sanitize())
}

type reserveReq struct {
    SheetRank string `json:"sheet_rank"`
}

// Reserve handles POST /api/events/:id/actions/reserve and answers 202
// with the assigned seat.
func (h *EventHandler) Reserve(c echo.Context) error {
    userID, _ := middleware.UserID(c)
    id := eventID(c)
    if id == 0 {
        return failWith(c, http.StatusNotFound, engine.ErrInvalidEvent.Error())
    }
    var req reserveReq
    if err := c.Bind(&req); err != nil {
        return failWith(c, http.StatusBadRequest, "invalid_input")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    a, err := h.Engine.Reserve(ctx, id, req.SheetRank, userID)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusAccepted, a)
}

// Cancel handles DELETE /api/events/:id/sheets/:rank/:num/reservation.
func (h *EventHandler) Cancel(c echo.Context) error {
    userID, _ := middleware.UserID(c)
    id := eventID(c)
    if id == 0 {
        return failWith(c, http.StatusNotFound, engine.ErrInvalidEvent.Error())
    }
    num, err := strconv.Atoi(c.Param("num"))
    if err != nil {
        num = 0 // rejected by the engine as invalid_sheet once the rank checks out
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if err := h.Engine.Cancel(ctx, id, c.Param("rank"), num, userID); err != nil {
        // an unknown rank in the path names no resource
        if errors.Is(err, engine.ErrInvalidRank) {
            return failWith(c, http.StatusNotFound, engine.ErrInvalidRank.Error())
        }
        return fail(c, h.Log, err)
    }
    return c.NoContent(http.StatusNoContent)
}
