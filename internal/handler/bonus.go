package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/middleware"
	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/service"
)

// BonusHandler serves balances, ledger operations and bonus settings.
type BonusHandler struct {
	Ledger *service.BonusLedger
	Users  *service.UserService
	Log    *zap.Logger
}

// NewBonusHandler panics when a dependency is missing.
func NewBonusHandler(ledger *service.BonusLedger, users *service.UserService, log *zap.Logger) *BonusHandler {
	if ledger == nil || users == nil {
		panic("nil service passed to NewBonusHandler")
	}
	return &BonusHandler{Ledger: ledger, Users: users, Log: orNop(log)}
}

// operationRequest is the body of every staff ledger operation.  Bonus is
// the amount to credit or the amount the customer wants to spend.
type operationRequest struct {
	UserID   string          `json:"user_id"`
	Bonus    decimal.Decimal `json:"bonus"`
	Purchase decimal.Decimal `json:"purchase"`
}

// bindOperation returns the decoded body or the message explaining why
// it was rejected.
func bindOperation(c echo.Context) (operationRequest, string) {
	var req operationRequest
	if err := c.Bind(&req); err != nil {
		return req, "invalid request body"
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return req, "user_id is required"
	}
	return req, ""
}

// MyBalance handles GET /v1/me/balance.
func (h *BonusHandler) MyBalance(c echo.Context) error {
	b, err := h.Ledger.Balance(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// MyTransactions handles GET /v1/me/transactions?limit=.
func (h *BonusHandler) MyTransactions(c echo.Context) error {
	return h.history(c, middleware.UserID(c))
}

// UserTransactions handles GET /v1/bonus/users/:id/transactions?limit=.
func (h *BonusHandler) UserTransactions(c echo.Context) error {
	return h.history(c, c.Param("id"))
}

func (h *BonusHandler) history(c echo.Context, userID string) error {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return badRequest(c, "limit must be a number")
	}
	ctx := c.Request().Context()
	if _, err := h.Ledger.Balance(ctx, userID); err != nil {
		return fail(c, h.Log, err)
	}
	txs, err := h.Ledger.History(ctx, userID, limit)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": txs})
}

// Quote handles GET /v1/bonus/quote?purchase=&user_id= and tells the
// cashier how much the purchase earns and how much may be paid with
// bonuses.
func (h *BonusHandler) Quote(c echo.Context) error {
	purchase, err := decimal.NewFromString(c.QueryParam("purchase"))
	if err != nil {
		return badRequest(c, "purchase must be a decimal")
	}
	ctx := c.Request().Context()
	vip := false
	if id := strings.TrimSpace(c.QueryParam("user_id")); id != "" {
		if vip, err = h.Users.IsVIP(ctx, id); err != nil {
			return fail(c, h.Log, err)
		}
	}
	cashback, err := h.Ledger.ComputeCashback(ctx, purchase, vip)
	if err != nil {
		return fail(c, h.Log, err)
	}
	maxDebit, err := h.Ledger.ComputeMaxDebit(ctx, purchase)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"purchase":  purchase,
		"vip":       vip,
		"cashback":  cashback,
		"max_debit": maxDebit,
	})
}

// Credit handles POST /v1/bonus/credit.
func (h *BonusHandler) Credit(c echo.Context) error {
	req, msg := bindOperation(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	tx, err := h.Ledger.ApplyCredit(c.Request().Context(), req.UserID, req.Bonus, req.Purchase, middleware.UserID(c))
	return h.transaction(c, tx, err)
}

// Debit handles POST /v1/bonus/debit.  The amount is clamped to the
// balance.
func (h *BonusHandler) Debit(c echo.Context) error {
	req, msg := bindOperation(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	tx, err := h.Ledger.ApplyDebit(c.Request().Context(), req.UserID, req.Bonus, req.Purchase, middleware.UserID(c))
	return h.transaction(c, tx, err)
}

// Accrue handles POST /v1/bonus/accrue: cashback on a purchase.
func (h *BonusHandler) Accrue(c echo.Context) error {
	req, msg := bindOperation(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	tx, err := h.Ledger.AccruePurchase(c.Request().Context(), req.UserID, req.Purchase, middleware.UserID(c))
	return h.transaction(c, tx, err)
}

// Redeem handles POST /v1/bonus/redeem: pay part of a purchase with
// bonuses, capped by the max-debit rate.
func (h *BonusHandler) Redeem(c echo.Context) error {
	req, msg := bindOperation(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	tx, err := h.Ledger.RedeemPurchase(c.Request().Context(), req.UserID, req.Bonus, req.Purchase, middleware.UserID(c))
	return h.transaction(c, tx, err)
}

// Review handles POST /v1/bonus/review.
func (h *BonusHandler) Review(c echo.Context) error {
	req, msg := bindOperation(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	tx, err := h.Ledger.AwardReviewBonus(c.Request().Context(), req.UserID, middleware.UserID(c))
	return h.transaction(c, tx, err)
}

func (h *BonusHandler) transaction(c echo.Context, tx model.Transaction, err error) error {
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, tx)
}

// Settings handles GET /v1/admin/settings.
func (h *BonusHandler) Settings(c echo.Context) error {
	s, err := h.Ledger.Settings(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// UpdateSettings handles PUT /v1/admin/settings with {"field", "value"}.
func (h *BonusHandler) UpdateSettings(c echo.Context) error {
	var body struct {
		Field string `json:"field"`
		Value *int   `json:"value"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Value == nil {
		return badRequest(c, "value is required")
	}
	s, err := h.Ledger.UpdateSettings(c.Request().Context(), body.Field, *body.Value)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Transactions handles GET /v1/admin/transactions with the optional
// filters user_id, worker_id, type, from, to (RFC 3339 or YYYY-MM-DD),
// limit and offset.
func (h *BonusHandler) Transactions(c echo.Context) error {
	f := model.TransactionFilter{
		UserID:   strings.TrimSpace(c.QueryParam("user_id")),
		WorkerID: strings.TrimSpace(c.QueryParam("worker_id")),
		Type:     model.TransactionType(strings.TrimSpace(c.QueryParam("type"))),
	}
	var ok bool
	if f.Limit, ok = intQuery(c, "limit", 0); !ok {
		return badRequest(c, "limit must be a number")
	}
	if f.Offset, ok = intQuery(c, "offset", 0); !ok {
		return badRequest(c, "offset must be a number")
	}
	var err error
	if f.From, err = timeQuery(c, "from"); err != nil {
		return badRequest(c, "from must be RFC 3339 or YYYY-MM-DD")
	}
	if f.To, err = timeQuery(c, "to"); err != nil {
		return badRequest(c, "to must be RFC 3339 or YYYY-MM-DD")
	}
	txs, err := h.Ledger.Transactions(c.Request().Context(), f)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": txs, "limit": f.Limit, "offset": f.Offset})
}

func timeQuery(c echo.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
