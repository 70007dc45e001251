package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tire-storage-bonus/internal/handler"
	"github.com/iliyamo/tire-storage-bonus/internal/memstore"
	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/service"
	"github.com/iliyamo/tire-storage-bonus/internal/utils"
)

const secret = "router-test-secret"

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()
	for id, role := range map[string]model.Role{"admin": model.RoleAdministrator, "emp": model.RoleEmployee} {
		require.NoError(t, st.Create(ctx, model.User{ID: id, Name: id, RegistrationDate: time.Now().UTC(), Role: role}, decimal.Zero))
	}

	ledger := service.NewBonusLedger(st, st, nil, nil)
	users := service.NewUserService(st, ledger, nil)
	registry := service.NewCellRegistry(st, st, service.PriceTable{
		model.StorageTires:         decimal.NewFromInt(3000),
		model.StorageTiresWithRims: decimal.NewFromInt(3500),
	}, nil, nil, nil)

	e := echo.New()
	RegisterRoutes(e, Handlers{
		Bonus: handler.NewBonusHandler(ledger, users, nil),
		Users: handler.NewUserHandler(users, service.NewQRService(st, st, 0), nil),
		Cells: handler.NewCellHandler(registry, nil),
		Stats: handler.NewStatsHandler(service.NewStatisticsService(st), nil),
	}, Options{JWTSecret: secret})
	return &api{t: t, e: e}
}

func (a *api) token(userID string, role model.Role) string {
	tok, err := utils.NewAccessToken(secret, userID, string(role), time.Hour)
	require.NoError(a.t, err)
	return tok.Token
}

// call sends body as JSON and decodes a JSON reply into out when given.
func (a *api) call(method, path, token string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

// raw sends body verbatim, for requests that are not valid JSON.
func (a *api) raw(method, path, token, body string) int {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec.Code
}

func TestBonusFlow(t *testing.T) {
	a := newAPI(t)
	cust := a.token("c1", model.RoleCustomer)
	emp := a.token("emp", model.RoleEmployee)
	admin := a.token("admin", model.RoleAdministrator)

	require.Equal(t, http.StatusUnauthorized, a.call(http.MethodGet, "/v1/me/balance", "", nil, nil))

	var u model.User
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/v1/users", cust, echo.Map{"name": "Ann", "phone": "+7000"}, &u))
	require.Equal(t, "c1", u.ID)
	require.Equal(t, http.StatusForbidden, a.call(http.MethodPost, "/v1/users", cust, echo.Map{"user_id": "c9", "name": "Eve"}, nil))
	require.Equal(t, http.StatusConflict, a.call(http.MethodPost, "/v1/users", cust, echo.Map{"name": "Ann"}, nil))

	var bal model.BonusBalance
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/v1/me/balance", cust, nil, &bal))
	require.Equal(t, "500", bal.Balance.String())

	var tx model.Transaction
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/v1/bonus/accrue", emp, echo.Map{"user_id": "c1", "purchase": "1000"}, &tx))
	require.Equal(t, "50", tx.BonusAmount.String())
	require.Equal(t, "emp", tx.WorkerID)

	require.Equal(t, http.StatusForbidden, a.call(http.MethodPost, "/v1/bonus/credit", cust, echo.Map{"user_id": "c1", "bonus": "10"}, nil))
	require.Equal(t, http.StatusNotFound, a.call(http.MethodPost, "/v1/bonus/credit", emp, echo.Map{"user_id": "ghost", "bonus": "10"}, nil))
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/v1/bonus/credit", emp, echo.Map{"user_id": "c1", "bonus": "-1"}, nil))
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/v1/bonus/credit", emp, echo.Map{"bonus": "1"}, nil))

	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/v1/bonus/redeem", emp, echo.Map{"user_id": "c1", "bonus": "1000", "purchase": "1000"}, &tx))
	require.Equal(t, "300", tx.BonusAmount.String())
	require.Equal(t, "250", tx.BalanceAfter.String())

	var quote struct {
		Cashback decimal.Decimal `json:"cashback"`
		MaxDebit decimal.Decimal `json:"max_debit"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/v1/bonus/quote?purchase=200&user_id=c1", emp, nil, &quote))
	require.Equal(t, "10", quote.Cashback.String())
	require.Equal(t, "60", quote.MaxDebit.String())
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/v1/bonus/quote?purchase=abc", emp, nil, nil))

	var hist struct {
		Items []model.Transaction `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/v1/me/transactions", cust, nil, &hist))
	require.Len(t, hist.Items, 2)
	require.Equal(t, model.TransactionDebit, hist.Items[0].Type)

	require.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/v1/admin/settings", emp, nil, nil))
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodPut, "/v1/admin/settings", admin, echo.Map{"field": "bogus", "value": 1}, nil))
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodPut, "/v1/admin/settings", admin, echo.Map{"field": "cashback", "value": 101}, nil))
	var s model.BonusSettings
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, "/v1/admin/settings", admin, echo.Map{"field": "cashback", "value": 7}, &s))
	require.Equal(t, 7, s.Cashback)

	var all struct {
		Items []model.Transaction `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/v1/admin/transactions?worker_id=emp&type=debit", admin, nil, &all))
	require.Len(t, all.Items, 1)
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/v1/admin/transactions?type=refund", admin, nil, nil))
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/v1/admin/transactions?from=yesterday", admin, nil, nil))

	var stats model.Statistics
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/v1/admin/statistics?period=all", admin, nil, &stats))
	require.EqualValues(t, 2, stats.TotalTransactions)
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/v1/admin/statistics?period=year", admin, nil, nil))
	require.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/v1/admin/statistics/workers/nobody", admin, nil, nil))
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/v1/admin/reports/monthly", admin, nil, nil))

	var role model.RoleHistory
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, "/v1/admin/users/c1/role", admin, echo.Map{"role": "employee"}, &role))
	require.Equal(t, model.RoleEmployee, role.Role)
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, "/v1/admin/users/c1/vip", admin, echo.Map{"vip": true}, nil))
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodPut, "/v1/admin/users/c1/vip", admin, echo.Map{}, nil))
}

func TestUserLookupAndQR(t *testing.T) {
	a := newAPI(t)
	cust := a.token("c1", model.RoleCustomer)
	emp := a.token("emp", model.RoleEmployee)
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/v1/users", cust, echo.Map{"name": "Ann", "phone": "+7000"}, nil))

	var found struct {
		User model.User `json:"user"`
		VIP  bool       `json:"vip"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/v1/users/by-phone/+7000", emp, nil, &found))
	require.Equal(t, "c1", found.User.ID)
	require.False(t, found.VIP)
	require.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/v1/users/nobody", emp, nil, nil))
	require.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/v1/users/c1", cust, nil, nil))

	var qr model.QRCode
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/v1/me/qr", cust, nil, &qr))
	var u model.User
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/v1/qr/"+qr.Code, emp, nil, &u))
	require.Equal(t, "c1", u.ID)
	require.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/v1/qr/unknown", emp, nil, nil))
}

func TestCellLifecycle(t *testing.T) {
	a := newAPI(t)
	cust := a.token("c1", model.RoleCustomer)
	other := a.token("c2", model.RoleCustomer)
	emp := a.token("emp", model.RoleEmployee)
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/v1/users", cust, echo.Map{"name": "Ann"}, nil))

	var created struct {
		Items []model.StorageCell `json:"items"`
	}
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/v1/cells", emp, echo.Map{"count": 2}, &created))
	require.Len(t, created.Items, 2)
	require.Equal(t, 1, created.Items[0].Label)
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/v1/cells", emp, echo.Map{"count": 0}, nil))
	require.Equal(t, http.StatusForbidden, a.call(http.MethodPost, "/v1/cells", cust, echo.Map{"count": 1}, nil))

	cell := fmt.Sprintf("/v1/cells/%d", created.Items[0].ID)
	require.Equal(t, http.StatusConflict, a.call(http.MethodPost, cell+"/handover/confirm", cust, nil, nil))

	handover := echo.Map{"customer_id": "c1", "storage_type": "tires", "scheduled_month": "2025-11"}
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, cell+"/handover", emp,
		echo.Map{"customer_id": "c1", "storage_type": "wheels", "scheduled_month": "2025-11"}, nil))
	require.Equal(t, http.StatusNotFound, a.call(http.MethodPost, "/v1/cells/999/handover", emp, handover, nil))

	var asg model.CellAssignment
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, cell+"/handover", emp, handover, &asg))
	require.Equal(t, model.StatePendingHandover, asg.State)
	require.Equal(t, "3000", asg.Price.String())
	require.Equal(t, "emp", asg.EmployeeID)

	require.Equal(t, http.StatusForbidden, a.call(http.MethodPost, cell+"/handover/confirm", other, nil, nil))
	require.Equal(t, http.StatusForbidden, a.call(http.MethodPost, cell+"/handover/confirm", emp, nil, nil))
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, cell+"/handover/confirm", cust, nil, &asg))
	require.Equal(t, model.StateConfirmed, asg.State)

	require.Equal(t, http.StatusOK, a.call(http.MethodPut, cell+"/extend", emp, echo.Map{"month": "2026-01"}, &asg))
	require.Equal(t, "2026-01", asg.ScheduledMonth)
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodPut, cell+"/extend", emp, echo.Map{"month": "January"}, nil))

	require.Equal(t, http.StatusOK, a.call(http.MethodPost, cell+"/pickup", cust, nil, &asg))
	require.Equal(t, model.StatePendingPickup, asg.State)
	require.Equal(t, http.StatusForbidden, a.call(http.MethodPost, cell+"/pickup/confirm", cust, nil, nil))
	require.Equal(t, http.StatusBadRequest, a.raw(http.MethodPost, cell+"/pickup/reject", emp, `{"reason":`))
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, cell+"/pickup/reject", emp, echo.Map{"reason": "not today"}, &asg))
	require.Equal(t, model.StateConfirmed, asg.State)

	require.Equal(t, http.StatusOK, a.call(http.MethodPost, cell+"/pickup", emp, nil, nil))
	require.Equal(t, http.StatusNoContent, a.call(http.MethodPost, cell+"/pickup/confirm", cust, nil, nil))

	var got model.StorageCell
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, cell, emp, nil, &got))
	require.Nil(t, got.Assignment)
	require.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/v1/cells/abc", emp, nil, nil))
	require.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/v1/cells/999", emp, nil, nil))

	var events struct {
		Items []model.AssignmentEvent `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, cell+"/events", emp, nil, &events))
	require.Len(t, events.Items, 7)
	require.Equal(t, model.EventPickupConfirmed, events.Items[0].Kind)

	second := fmt.Sprintf("/v1/cells/%d", created.Items[1].ID)
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, second+"/handover", emp, handover, nil))
	require.Equal(t, http.StatusBadRequest, a.raw(http.MethodPost, second+"/handover/reject", cust, "not json"))
	require.Equal(t, http.StatusNoContent, a.call(http.MethodPost, second+"/handover/reject", cust, echo.Map{"reason": "wrong size"}, nil))

	require.Equal(t, http.StatusNoContent, a.call(http.MethodDelete, cell, emp, nil, nil))
	require.Equal(t, http.StatusNotFound, a.call(http.MethodDelete, cell, emp, nil, nil))

	var list struct {
		Items []model.StorageCell `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/v1/cells", emp, nil, &list))
	require.Len(t, list.Items, 1)
}
