package memstore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/repository"
)

func inWindow(t time.Time, since *time.Time) bool {
	return since == nil || !t.Before(*since)
}

// Overview aggregates the ledger since the given time (all time when
// since is nil).
func (s *Store) Overview(_ context.Context, since *time.Time) (model.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := model.Statistics{TotalUsers: int64(len(s.users))}
	active := map[string]bool{}
	for _, t := range s.txs {
		if !inWindow(t.Date, since) {
			continue
		}
		st.TotalTransactions++
		st.TotalAmount = st.TotalAmount.Add(t.Amount)
		if t.Type == model.TransactionCredit {
			st.TotalBonusAmount = st.TotalBonusAmount.Add(t.BonusAmount)
		}
		active[t.UserID] = true
	}
	st.ActiveUsers = int64(len(active))
	if st.TotalTransactions > 0 {
		st.AveragePurchaseAmount = st.TotalAmount.Div(decimal.NewFromInt(st.TotalTransactions)).Round(2)
	}
	for _, b := range s.balances {
		st.TotalBonusBalance = st.TotalBonusBalance.Add(b.Balance)
	}
	return st, nil
}

// Worker aggregates the operations performed by workerID.
func (s *Store) Worker(_ context.Context, workerID string, since *time.Time) (model.WorkerStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[workerID]
	if !ok {
		return model.WorkerStatistics{}, repository.ErrNotFound
	}
	ws := model.WorkerStatistics{UserID: workerID, Name: u.Name}
	for _, h := range s.roles {
		if h.UserID == workerID && (ws.RoleAssignedDate == nil || h.AssignedDate.After(*ws.RoleAssignedDate)) {
			at := h.AssignedDate
			ws.RoleAssignedDate = &at
		}
	}
	for _, t := range s.txs {
		if t.WorkerID != workerID || !inWindow(t.Date, since) {
			continue
		}
		ws.TotalTransactions++
		ws.TotalAmount = ws.TotalAmount.Add(t.Amount)
		if t.Type == model.TransactionCredit {
			ws.TotalAdd = ws.TotalAdd.Add(t.BonusAmount)
		} else {
			ws.TotalRemove = ws.TotalRemove.Add(t.BonusAmount)
		}
	}
	return ws, nil
}

// Monthly aggregates the half-open interval [from, to).
func (s *Store) Monthly(_ context.Context, from, to time.Time) (model.MonthlyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var m model.MonthlyReport
	for _, u := range s.users {
		if !u.RegistrationDate.Before(from) && u.RegistrationDate.Before(to) {
			m.NewUsers++
		}
	}
	for _, t := range s.txs {
		if t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		if t.Amount.IsPositive() {
			m.SalesCount++
		}
		m.SalesAmount = m.SalesAmount.Add(t.Amount)
		if t.Type == model.TransactionCredit {
			m.BonusesAdded = m.BonusesAdded.Add(t.BonusAmount)
		} else {
			m.BonusesSpent = m.BonusesSpent.Add(t.BonusAmount)
		}
	}
	return m, nil
}

// ---- QR codes ----

// Save stores qr until ttl has elapsed on the store clock.
func (s *Store) Save(_ context.Context, qr model.QRCode, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qr[qr.Code] = qrEntry{qr: qr, expires: s.now().Add(ttl)}
	return nil
}

// Load returns the code or repository.ErrNotFound once it has expired.
func (s *Store) Load(_ context.Context, code string) (model.QRCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.qr[code]
	if !ok || !s.now().Before(e.expires) {
		delete(s.qr, code)
		return model.QRCode{}, repository.ErrNotFound
	}
	return e.qr, nil
}
