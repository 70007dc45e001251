package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tire-storage-bonus/internal/memstore"
	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
	fail bool
}

func (n *recordingNotifier) Notify(_ context.Context, msg model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("gateway down")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) last() model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type recordingReceipts struct {
	jobs []model.ReceiptJob
}

func (r *recordingReceipts) RequestReceipt(_ context.Context, job model.ReceiptJob) error {
	r.jobs = append(r.jobs, job)
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func addUser(t *testing.T, st *memstore.Store, id string, role model.Role, balance string) {
	t.Helper()
	err := st.Create(context.Background(), model.User{
		ID: id, Name: "user " + id, RegistrationDate: time.Now().UTC(), Role: role,
	}, dec(balance))
	require.NoError(t, err)
}

var (
	employee = Actor{ID: "emp", Role: model.RoleEmployee}
	customer = Actor{ID: "cust", Role: model.RoleCustomer}
)

func testPrices() PriceTable {
	return PriceTable{
		model.StorageTires:         dec("3000"),
		model.StorageTiresWithRims: dec("3500"),
	}
}
