// Package memstore is an in-memory implementation of every store the
// services need.  A single mutex serialises all operations, which gives
// the same isolation the MySQL repositories get from row locks.  It
// backs APP_STORAGE=memory and the service and handler tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/repository"
)

type qrEntry struct {
	qr      model.QRCode
	expires time.Time
}

// Store holds users, the ledger, cells and QR codes in memory.
type Store struct {
	mu sync.Mutex

	users    map[string]model.User
	vip      map[string]bool
	roles    []model.RoleHistory
	balances map[string]model.BonusBalance
	txs      []model.Transaction
	settings *model.BonusSettings

	cells       map[int64]model.StorageCell
	assignments map[int64]model.CellAssignment
	events      []model.AssignmentEvent
	nextCellID  int64

	qr  map[string]qrEntry
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       map[string]model.User{},
		vip:         map[string]bool{},
		balances:    map[string]model.BonusBalance{},
		cells:       map[int64]model.StorageCell{},
		assignments: map[int64]model.CellAssignment{},
		qr:          map[string]qrEntry{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for QR expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ---- users ----

// Create adds u with a balance seeded with welcome.  A duplicate id or
// phone yields repository.ErrConflict.
func (s *Store) Create(_ context.Context, u model.User, welcome decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return repository.ErrConflict
	}
	if u.Phone != nil {
		for _, other := range s.users {
			if other.Phone != nil && *other.Phone == *u.Phone {
				return repository.ErrConflict
			}
		}
	}
	s.users[u.ID] = u
	s.balances[u.ID] = model.BonusBalance{UserID: u.ID, Balance: welcome, UpdatedAt: u.RegistrationDate}
	return nil
}

// GetByID fetches a user by platform id.
func (s *Store) GetByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return u, repository.ErrNotFound
	}
	return u, nil
}

// GetByPhone fetches a user by mobile phone.
func (s *Store) GetByPhone(_ context.Context, phone string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Phone != nil && *u.Phone == phone {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

// ChangeRole sets the role of userID and appends a role history entry.
func (s *Store) ChangeRole(_ context.Context, adminID, userID string, role model.Role, at time.Time) (model.RoleHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.RoleHistory{}, repository.ErrNotFound
	}
	u.Role = role
	s.users[userID] = u
	h := model.RoleHistory{ID: uint64(len(s.roles) + 1), AdminID: adminID, UserID: userID, Role: role, AssignedDate: at}
	s.roles = append(s.roles, h)
	return h, nil
}

// SetVIP adds or removes userID from the VIP list.
func (s *Store) SetVIP(_ context.Context, userID string, vip bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return repository.ErrNotFound
	}
	if vip {
		s.vip[userID] = true
	} else {
		delete(s.vip, userID)
	}
	return nil
}

// IsVIP reports whether userID is a VIP client.
func (s *Store) IsVIP(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vip[userID], nil
}

// ---- ledger ----

// Balance returns the balance of userID or repository.ErrNotFound.
func (s *Store) Balance(_ context.Context, userID string) (model.BonusBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return b, repository.ErrNotFound
	}
	return b, nil
}

// UpdateBalance passes the current balance to apply and stores the
// result.  Nothing changes when apply fails.
func (s *Store) UpdateBalance(_ context.Context, userID string, apply func(current decimal.Decimal) (model.Transaction, error)) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return model.Transaction{}, repository.ErrNotFound
	}
	t, err := apply(b.Balance)
	if err != nil {
		return model.Transaction{}, err
	}
	if t.BalanceAfter.IsNegative() {
		return model.Transaction{}, fmt.Errorf("balance of %s would become %s", userID, t.BalanceAfter)
	}
	t.UserID = userID
	t.ID = uint64(len(s.txs) + 1)
	s.txs = append(s.txs, t)
	b.Balance = t.BalanceAfter
	b.UpdatedAt = t.Date
	s.balances[userID] = b
	return t, nil
}

func newestFirst(txs []model.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID > txs[j].ID
	})
}

// History returns the latest limit transactions of userID, newest first.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	return s.Transactions(ctx, model.TransactionFilter{UserID: userID, Limit: limit})
}

// Transactions lists ledger entries matching f, newest first.
func (s *Store) Transactions(_ context.Context, f model.TransactionFilter) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Transaction{}
	for _, t := range s.txs {
		switch {
		case f.UserID != "" && t.UserID != f.UserID,
			f.WorkerID != "" && t.WorkerID != f.WorkerID,
			f.Type != "" && t.Type != f.Type,
			f.From != nil && t.Date.Before(*f.From),
			f.To != nil && !t.Date.Before(*f.To):
			continue
		}
		out = append(out, t)
	}
	newestFirst(out)
	if f.Offset >= len(out) {
		return []model.Transaction{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Settings returns the settings, seeding them from defaults on first use.
func (s *Store) Settings(_ context.Context, defaults model.BonusSettings) (model.BonusSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		d := defaults
		s.settings = &d
	}
	return *s.settings, nil
}

// UpdateSettings replaces the settings with what apply returns.
func (s *Store) UpdateSettings(_ context.Context, defaults model.BonusSettings, apply func(model.BonusSettings) (model.BonusSettings, error)) (model.BonusSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := defaults
	if s.settings != nil {
		cur = *s.settings
	}
	next, err := apply(cur)
	if err != nil {
		return model.BonusSettings{}, err
	}
	s.settings = &next
	return next, nil
}
