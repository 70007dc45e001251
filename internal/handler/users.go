package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/middleware"
	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/service"
)

// UserHandler serves registration, lookup and role management.
type UserHandler struct {
	Users *service.UserService
	QR    *service.QRService
	Log   *zap.Logger
}

// NewUserHandler panics when the user service is missing.  A nil QR
// service is allowed; the QR endpoints then answer 503.
func NewUserHandler(users *service.UserService, qr *service.QRService, log *zap.Logger) *UserHandler {
	if users == nil {
		panic("nil user service passed to NewUserHandler")
	}
	if qr == nil {
		qr = service.NewQRService(nil, nil, 0)
	}
	return &UserHandler{Users: users, QR: qr, Log: orNop(log)}
}

// Register handles POST /v1/users.  Customers may only register
// themselves; an omitted user_id defaults to the caller.
func (h *UserHandler) Register(c echo.Context) error {
	var in service.NewUser
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	caller := middleware.UserID(c)
	if strings.TrimSpace(in.ID) == "" {
		in.ID = caller
	}
	if middleware.Role(c) == model.RoleCustomer && strings.TrimSpace(in.ID) != caller {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "customers can only register themselves"})
	}
	u, err := h.Users.Register(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// Get handles GET /v1/users/:id.
func (h *UserHandler) Get(c echo.Context) error {
	u, err := h.Users.Get(c.Request().Context(), c.Param("id"))
	return h.user(c, u, err)
}

// ByPhone handles GET /v1/users/by-phone/:phone.
func (h *UserHandler) ByPhone(c echo.Context) error {
	u, err := h.Users.FindByPhone(c.Request().Context(), c.Param("phone"))
	return h.user(c, u, err)
}

func (h *UserHandler) user(c echo.Context, u *model.User, err error) error {
	if err != nil {
		return fail(c, h.Log, err)
	}
	if u == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	vip, err := h.Users.IsVIP(c.Request().Context(), u.ID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u, "vip": vip})
}

// ChangeRole handles PUT /v1/admin/users/:id/role with {"role"}.
func (h *UserHandler) ChangeRole(c echo.Context) error {
	var body struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	entry, err := h.Users.ChangeRole(c.Request().Context(), middleware.UserID(c), c.Param("id"), body.Role)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, entry)
}

// SetVIP handles PUT /v1/admin/users/:id/vip with {"vip"}.
func (h *UserHandler) SetVIP(c echo.Context) error {
	var body struct {
		VIP *bool `json:"vip"`
	}
	if err := c.Bind(&body); err != nil || body.VIP == nil {
		return badRequest(c, "vip must be true or false")
	}
	if err := h.Users.SetVIP(c.Request().Context(), c.Param("id"), *body.VIP); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": c.Param("id"), "vip": *body.VIP})
}

// IssueQR handles POST /v1/me/qr.
func (h *UserHandler) IssueQR(c echo.Context) error {
	qr, err := h.QR.Issue(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, qr)
}

// ResolveQR handles GET /v1/qr/:code for the cashier's scanner.
func (h *UserHandler) ResolveQR(c echo.Context) error {
	u, err := h.QR.Resolve(c.Request().Context(), c.Param("code"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}
