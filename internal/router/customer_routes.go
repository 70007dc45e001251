package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tire-storage-bonus/internal/middleware"
	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

// registerCustomer adds the routes any authenticated caller may use and
// the answers only the assigned customer can give.  Ownership checks are
// done by the services.
func registerCustomer(v1 *echo.Group, h Handlers) {
	anyRole := middleware.RequireRole(model.RoleCustomer, model.RoleEmployee, model.RoleAdministrator)

	me := v1.Group("/me", anyRole)
	me.GET("/balance", h.Bonus.MyBalance)
	me.GET("/transactions", h.Bonus.MyTransactions)
	me.POST("/qr", h.Users.IssueQR)

	v1.POST("/users", h.Users.Register, anyRole)

	cells := v1.Group("/cells/:id")
	cells.POST("/handover/confirm", h.Cells.ConfirmHandover, middleware.RequireRole(model.RoleCustomer))
	cells.POST("/handover/reject", h.Cells.RejectHandover, middleware.RequireRole(model.RoleCustomer))
	cells.POST("/pickup", h.Cells.RequestPickup, anyRole)
	cells.POST("/pickup/confirm", h.Cells.ConfirmPickup, anyRole)
	cells.POST("/pickup/reject", h.Cells.RejectPickup, anyRole)
}
