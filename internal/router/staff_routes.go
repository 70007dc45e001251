package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tire-storage-bonus/internal/middleware"
	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

// registerStaff adds the cashier and storage desk routes.
func registerStaff(v1 *echo.Group, h Handlers) {
	staff := middleware.RequireRole(model.RoleEmployee, model.RoleAdministrator)

	users := v1.Group("/users", staff)
	users.GET("/by-phone/:phone", h.Users.ByPhone)
	users.GET("/:id", h.Users.Get)
	v1.GET("/qr/:code", h.Users.ResolveQR, staff)

	bonus := v1.Group("/bonus", staff)
	bonus.GET("/quote", h.Bonus.Quote)
	bonus.POST("/credit", h.Bonus.Credit)
	bonus.POST("/debit", h.Bonus.Debit)
	bonus.POST("/accrue", h.Bonus.Accrue)
	bonus.POST("/redeem", h.Bonus.Redeem)
	bonus.POST("/review", h.Bonus.Review)
	bonus.GET("/users/:id/transactions", h.Bonus.UserTransactions)

	cells := v1.Group("/cells", staff)
	cells.POST("", h.Cells.Create)
	cells.GET("", h.Cells.List)
	cells.GET("/:id", h.Cells.Get)
	cells.GET("/:id/events", h.Cells.Events)
	cells.DELETE("/:id", h.Cells.Delete)
	cells.POST("/:id/handover", h.Cells.Handover)
	cells.PUT("/:id/extend", h.Cells.Extend)
}
