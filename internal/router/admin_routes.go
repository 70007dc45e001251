package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tire-storage-bonus/internal/middleware"
	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

// registerAdmin adds settings, role management, the ledger listing and
// the cached reports.
func registerAdmin(v1 *echo.Group, h Handlers, cache echo.MiddlewareFunc) {
	admin := v1.Group("/admin", middleware.RequireRole(model.RoleAdministrator))

	admin.GET("/settings", h.Bonus.Settings)
	admin.PUT("/settings", h.Bonus.UpdateSettings)
	admin.GET("/transactions", h.Bonus.Transactions)
	admin.PUT("/users/:id/role", h.Users.ChangeRole)
	admin.PUT("/users/:id/vip", h.Users.SetVIP)

	admin.GET("/statistics", h.Stats.Overview, cache)
	admin.GET("/statistics/workers/:id", h.Stats.Worker, cache)
	admin.GET("/reports/monthly", h.Stats.Monthly, cache)
}
