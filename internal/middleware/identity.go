package middleware

// identity.go holds the context keys written by JWTAuth and the helpers
// handlers use to read them back.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the platform id of the authenticated caller or "".
func UserID(c echo.Context) string {
	if v, ok := c.Get(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// Role returns the role claimed by the caller's token or "".
func Role(c echo.Context) model.Role {
	if v, ok := c.Get(ctxRole).(model.Role); ok {
		return v
	}
	return ""
}

// rateKeyUser identifies the caller for rate limiting.
func rateKeyUser(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
