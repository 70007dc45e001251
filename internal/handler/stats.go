package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/service"
)

// StatsHandler serves the administrator reports.
type StatsHandler struct {
	Stats *service.StatisticsService
	Log   *zap.Logger
}

func NewStatsHandler(stats *service.StatisticsService, log *zap.Logger) *StatsHandler {
	if stats == nil {
		panic("nil statistics service passed to NewStatsHandler")
	}
	return &StatsHandler{Stats: stats, Log: orNop(log)}
}

// Overview handles GET /v1/admin/statistics?period=day|week|month|all.
func (h *StatsHandler) Overview(c echo.Context) error {
	s, err := h.Stats.Overview(c.Request().Context(), c.QueryParam("period"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Worker handles GET /v1/admin/statistics/workers/:id?period=.
func (h *StatsHandler) Worker(c echo.Context) error {
	ws, err := h.Stats.Worker(c.Request().Context(), c.Param("id"), c.QueryParam("period"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	if ws == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "worker not found"})
	}
	return c.JSON(http.StatusOK, ws)
}

// Monthly handles GET /v1/admin/reports/monthly?year=&month=.  Missing
// values default to the current UTC month.
func (h *StatsHandler) Monthly(c echo.Context) error {
	now := time.Now().UTC()
	year, ok := intQuery(c, "year", now.Year())
	if !ok {
		return badRequest(c, "year must be a number")
	}
	month, ok := intQuery(c, "month", int(now.Month()))
	if !ok {
		return badRequest(c, "month must be a number")
	}
	r, err := h.Stats.Monthly(c.Request().Context(), year, month)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}
