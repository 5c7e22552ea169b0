package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                 // import the Echo web framework to handle routing
	echomw "github.com/labstack/echo/v4/middleware" // panic recovery
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iliyamo/sheet-reservation/internal/handler"    // handlers that implement the endpoints
	"github.com/iliyamo/sheet-reservation/internal/middleware" // JWT authentication, roles, cache and rate limiting
	"github.com/iliyamo/sheet-reservation/internal/utils"
)

// Options carries the middleware shared by the route groups.
type Options struct {
	JWTSecret   string
	Revocations middleware.Revocations
	Cache       *middleware.ResponseCache // nil disables caching
	RateLimit   echo.MiddlewareFunc       // nil disables rate limiting
	Health      echo.HandlerFunc
	Log         *zap.Logger
}

// New builds the Echo instance with every route registered.
func New(opts Options, users *handler.UserHandler, events *handler.EventHandler, admin *handler.AdminHandler) *echo.Echo {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.RateLimit == nil {
		opts.RateLimit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if opts.Health == nil {
		opts.Health = handler.Health(nil)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(opts.Log)
	// RequestLog wraps Recover so a recovered panic is logged with its 500
	e.Use(middleware.RequestLog(opts.Log))
	e.Use(echomw.Recover())
	e.Use(middleware.JWTAuth(opts.JWTSecret, opts.Revocations))

	RegisterRoutes(e, opts.Health)
	RegisterUsers(e, users, opts)
	RegisterEvents(e, events, opts)
	RegisterAdmin(e, admin, opts)
	return e
}

// RegisterRoutes registers the operational endpoints: the health check
// and the Prometheus scrape target.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterUsers registers registration, login and the profile page.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, opts Options) {
	login := middleware.RequireRole("login_required", utils.RoleUser)

	e.POST("/api/users", u.Register)
	e.POST("/api/actions/login", u.Login)
	e.POST("/api/actions/logout", u.Logout, login)
	e.GET("/api/users/:id", u.Profile, login)
}

// RegisterEvents registers the public event pages and the seat actions.
// The public list is served from the response cache; every seat action
// that succeeds drops it.
func RegisterEvents(e *echo.Echo, h *handler.EventHandler, opts Options) {
	login := middleware.RequireRole("login_required", utils.RoleUser)
	invalidate := opts.Cache.InvalidateOnWrite()

	e.GET("/api/events", h.List, opts.Cache.Middleware())
	e.GET("/api/events/:id", h.Get)
	e.POST("/api/events/:id/actions/reserve", h.Reserve, login, opts.RateLimit, invalidate)
	e.DELETE("/api/events/:id/sheets/:rank/:num/reservation", h.Cancel, login, opts.RateLimit, invalidate)
}

// RegisterAdmin registers the administrator API under /admin/api.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, opts Options) {
	g := e.Group("/admin/api")
	g.POST("/actions/login", h.Login)

	auth := g.Group("", middleware.RequireRole("admin_login_required", utils.RoleAdmin))
	invalidate := opts.Cache.InvalidateOnWrite()

	auth.POST("/actions/logout", h.Logout)
	auth.GET("/events", h.ListEvents)
	auth.POST("/events", h.CreateEvent, invalidate)
	auth.GET("/events/:id", h.GetEvent)
	auth.POST("/events/:id/actions/edit", h.EditEvent, invalidate)
	auth.GET("/reports/events/:id/sales", h.EventSales)
	auth.GET("/reports/sales", h.Sales)
	auth.POST("/actions/rebuild-counters", h.RebuildCounters, invalidate)
}
