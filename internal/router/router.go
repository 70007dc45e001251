package router // package router registers the HTTP routes of the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tire-storage-bonus/internal/handler"
	"github.com/iliyamo/tire-storage-bonus/internal/middleware"
)

// Handlers bundles everything the route groups dispatch to.
type Handlers struct {
	Bonus *handler.BonusHandler
	Users *handler.UserHandler
	Cells *handler.CellHandler
	Stats *handler.StatsHandler
	Ready echo.HandlerFunc
}

// Options carries the middleware that depends on configuration.
type Options struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc // applied to every /v1 route; nil disables it
	Cache     echo.MiddlewareFunc // applied to the reports; nil disables it
}

// RegisterRoutes wires the probes and every /v1 group.  All /v1 routes
// require a gateway token.
func RegisterRoutes(e *echo.Echo, h Handlers, opts Options) {
	e.GET("/healthz", handler.Health)
	if h.Ready != nil {
		e.GET("/readyz", h.Ready)
	}

	v1 := e.Group("/v1", middleware.JWTAuth(opts.JWTSecret))
	if opts.RateLimit != nil {
		v1.Use(opts.RateLimit)
	}
	cache := opts.Cache
	if cache == nil {
		cache = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	registerCustomer(v1, h)
	registerStaff(v1, h)
	registerAdmin(v1, h, cache)
}
