package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/middleware"
	"github.com/iliyamo/tire-storage-bonus/internal/service"
)

// CellHandler serves the storage cell registry and the handover and
// pickup confirmations.
type CellHandler struct {
	Registry *service.CellRegistry
	Log      *zap.Logger
}

func NewCellHandler(registry *service.CellRegistry, log *zap.Logger) *CellHandler {
	if registry == nil {
		panic("nil registry passed to NewCellHandler")
	}
	return &CellHandler{Registry: registry, Log: orNop(log)}
}

// reasonBody is optional; an empty request body binds to the zero value.
type reasonBody struct {
	Reason string `json:"reason"`
}

func actor(c echo.Context) service.Actor {
	return service.Actor{ID: middleware.UserID(c), Role: middleware.Role(c)}
}

// cellID reads :id and writes a 400 when it is malformed.
func (h *CellHandler) cellID(c echo.Context) (int64, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		_ = badRequest(c, "invalid cell id")
	}
	return id, ok
}

// Create handles POST /v1/cells with {"count"}.
func (h *CellHandler) Create(c echo.Context) error {
	var body struct {
		Count int `json:"count"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	cells, err := h.Registry.CreateCells(c.Request().Context(), body.Count)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"items": cells})
}

// List handles GET /v1/cells.
func (h *CellHandler) List(c echo.Context) error {
	cells, err := h.Registry.Cells(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": cells})
}

// Get handles GET /v1/cells/:id.
func (h *CellHandler) Get(c echo.Context) error {
	id, ok := h.cellID(c)
	if !ok {
		return nil
	}
	cell, err := h.Registry.Cell(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if cell == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "cell not found"})
	}
	return c.JSON(http.StatusOK, cell)
}

// Events handles GET /v1/cells/:id/events?limit=.
func (h *CellHandler) Events(c echo.Context) error {
	id, ok := h.cellID(c)
	if !ok {
		return nil
	}
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return badRequest(c, "limit must be a number")
	}
	events, err := h.Registry.Events(c.Request().Context(), id, limit)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}

// Delete handles DELETE /v1/cells/:id.
func (h *CellHandler) Delete(c echo.Context) error {
	id, ok := h.cellID(c)
	if !ok {
		return nil
	}
	if err := h.Registry.DeleteCell(c.Request().Context(), id, middleware.UserID(c)); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Handover handles POST /v1/cells/:id/handover.  The caller is recorded
// as the receiving employee.
func (h *CellHandler) Handover(c echo.Context) error {
	id, ok := h.cellID(c)
	if !ok {
		return nil
	}
	var req service.HandoverRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.CellID = id
	req.EmployeeID = middleware.UserID(c)
	a, err := h.Registry.AssignHandover(c.Request().Context(), req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// ConfirmHandover handles POST /v1/cells/:id/handover/confirm.
func (h *CellHandler) ConfirmHandover(c echo.Context) error {
	id, ok := h.cellID(c)
	if !ok {
		return nil
	}
	a, err := h.Registry.ConfirmHandover(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// RejectHandover handles POST /v1/cells/:id/handover/reject.
func (h *CellHandler) RejectHandover(c echo.Context) error {
	id, ok := h.cellID(c)
	if !ok {
		return nil
	}
	var body reasonBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.Registry.RejectHandover(c.Request().Context(), id, middleware.UserID(c), body.Reason); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Extend handles PUT /v1/cells/:id/extend with {"month": "YYYY-MM"}.
func (h *CellHandler) Extend(c echo.Context) error {
	id, ok := h.cellID(c)
	if !ok {
		return nil
	}
	var body struct {
		Month string `json:"month"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	a, err := h.Registry.ExtendStorage(c.Request().Context(), id, body.Month, middleware.UserID(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// RequestPickup handles POST /v1/cells/:id/pickup.
func (h *CellHandler) RequestPickup(c echo.Context) error {
	id, ok := h.cellID(c)
	if !ok {
		return nil
	}
	a, err := h.Registry.RequestPickup(c.Request().Context(), id, actor(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// ConfirmPickup handles POST /v1/cells/:id/pickup/confirm.
func (h *CellHandler) ConfirmPickup(c echo.Context) error {
	id, ok := h.cellID(c)
	if !ok {
		return nil
	}
	if err := h.Registry.ConfirmPickup(c.Request().Context(), id, actor(c)); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RejectPickup handles POST /v1/cells/:id/pickup/reject.
func (h *CellHandler) RejectPickup(c echo.Context) error {
	id, ok := h.cellID(c)
	if !ok {
		return nil
	}
	var body reasonBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	a, err := h.Registry.RejectPickup(c.Request().Context(), id, actor(c), body.Reason)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, a)
}
