package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/repository"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	defaultListLimit    = 50
	maxListLimit        = 500
)

// LedgerStore is the persistence the ledger needs.  UpdateBalance must
// run apply while holding a lock on the balance row and store the
// returned transaction atomically with the new balance.
type LedgerStore interface {
	Balance(ctx context.Context, userID string) (model.BonusBalance, error)
	UpdateBalance(ctx context.Context, userID string, apply func(current decimal.Decimal) (model.Transaction, error)) (model.Transaction, error)
	History(ctx context.Context, userID string, limit int) ([]model.Transaction, error)
	Transactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, error)
	Settings(ctx context.Context, defaults model.BonusSettings) (model.BonusSettings, error)
	UpdateSettings(ctx context.Context, defaults model.BonusSettings, apply func(model.BonusSettings) (model.BonusSettings, error)) (model.BonusSettings, error)
}

// VIPChecker tells whether a customer earns the VIP cashback rate.
type VIPChecker interface {
	IsVIP(ctx context.Context, userID string) (bool, error)
}

// BonusLedger keeps bonus balances.  Every credit and debit is written
// together with its transaction row; balances never go below zero.
type BonusLedger struct {
	store    LedgerStore
	vip      VIPChecker
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
	defaults model.BonusSettings
}

// NewBonusLedger wires a ledger.  vip and notifier may be nil.
func NewBonusLedger(store LedgerStore, vip VIPChecker, notifier Notifier, log *zap.Logger) *BonusLedger {
	return &BonusLedger{
		store:    store,
		vip:      vip,
		notifier: notifier,
		log:      orNop(log),
		now:      func() time.Time { return time.Now().UTC() },
		defaults: model.DefaultBonusSettings(),
	}
}

// Percent returns pct percent of amount rounded half-up to cents.
func Percent(amount decimal.Decimal, pct int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(2)
}

// Settings returns the current settings, creating the row with the
// defaults on first use.
func (l *BonusLedger) Settings(ctx context.Context) (model.BonusSettings, error) {
	s, err := l.store.Settings(ctx, l.defaults)
	if err != nil {
		return s, fmt.Errorf("load bonus settings: %w", err)
	}
	return s, nil
}

// ComputeCashback returns the bonus earned on purchase.
func (l *BonusLedger) ComputeCashback(ctx context.Context, purchase decimal.Decimal, isVIP bool) (decimal.Decimal, error) {
	if purchase.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: purchase %s", ErrInvalidAmount, purchase)
	}
	s, err := l.Settings(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	rate := s.Cashback
	if isVIP {
		rate = s.VipCashback
	}
	return Percent(purchase, rate), nil
}

// ComputeMaxDebit returns the largest bonus amount that may pay for
// part of purchase.
func (l *BonusLedger) ComputeMaxDebit(ctx context.Context, purchase decimal.Decimal) (decimal.Decimal, error) {
	if purchase.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: purchase %s", ErrInvalidAmount, purchase)
	}
	s, err := l.Settings(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return Percent(purchase, s.MaxDebit), nil
}

// ApplyCredit adds bonus to the balance of userID.
func (l *BonusLedger) ApplyCredit(ctx context.Context, userID string, bonus, purchase decimal.Decimal, employeeID string) (model.Transaction, error) {
	if bonus.IsNegative() || purchase.IsNegative() {
		return model.Transaction{}, fmt.Errorf("%w: credit %s on purchase %s", ErrInvalidAmount, bonus, purchase)
	}
	bonus = bonus.Round(2)
	t, err := l.store.UpdateBalance(ctx, userID, func(current decimal.Decimal) (model.Transaction, error) {
		return model.Transaction{
			WorkerID:     employeeID,
			Date:         l.now(),
			Type:         model.TransactionCredit,
			Amount:       purchase.Round(2),
			BonusAmount:  bonus,
			BalanceAfter: current.Add(bonus),
		}, nil
	})
	if err != nil {
		return t, balanceErr(userID, err)
	}
	l.log.Info("bonus credited",
		zap.String("user_id", userID),
		zap.String("worker_id", employeeID),
		zap.String("bonus", t.BonusAmount.StringFixed(2)),
		zap.String("balance", t.BalanceAfter.StringFixed(2)))
	l.notifyBalance(ctx, t)
	return t, nil
}

// ApplyDebit removes up to requested bonuses from userID.  The amount
// actually removed is min(requested, balance) and is what the
// transaction records.
func (l *BonusLedger) ApplyDebit(ctx context.Context, userID string, requested, purchase decimal.Decimal, employeeID string) (model.Transaction, error) {
	if requested.IsNegative() || purchase.IsNegative() {
		return model.Transaction{}, fmt.Errorf("%w: debit %s on purchase %s", ErrInvalidAmount, requested, purchase)
	}
	requested = requested.Round(2)
	t, err := l.store.UpdateBalance(ctx, userID, func(current decimal.Decimal) (model.Transaction, error) {
		actual := decimal.Min(requested, current)
		return model.Transaction{
			WorkerID:     employeeID,
			Date:         l.now(),
			Type:         model.TransactionDebit,
			Amount:       purchase.Round(2),
			BonusAmount:  actual,
			BalanceAfter: current.Sub(actual),
		}, nil
	})
	if err != nil {
		return t, balanceErr(userID, err)
	}
	l.log.Info("bonus debited",
		zap.String("user_id", userID),
		zap.String("worker_id", employeeID),
		zap.String("requested", requested.StringFixed(2)),
		zap.String("bonus", t.BonusAmount.StringFixed(2)),
		zap.String("balance", t.BalanceAfter.StringFixed(2)))
	l.notifyBalance(ctx, t)
	return t, nil
}

// AccruePurchase credits the cashback of purchase, using the VIP rate
// when the customer is a VIP.
func (l *BonusLedger) AccruePurchase(ctx context.Context, userID string, purchase decimal.Decimal, employeeID string) (model.Transaction, error) {
	isVIP := false
	if l.vip != nil {
		v, err := l.vip.IsVIP(ctx, userID)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("vip lookup: %w", err)
		}
		isVIP = v
	}
	bonus, err := l.ComputeCashback(ctx, purchase, isVIP)
	if err != nil {
		return model.Transaction{}, err
	}
	return l.ApplyCredit(ctx, userID, bonus, purchase, employeeID)
}

// RedeemPurchase pays part of purchase with bonuses.  The request is
// capped by the max debit share of the purchase and then by the balance.
func (l *BonusLedger) RedeemPurchase(ctx context.Context, userID string, requested, purchase decimal.Decimal, employeeID string) (model.Transaction, error) {
	if requested.IsNegative() {
		return model.Transaction{}, fmt.Errorf("%w: debit %s", ErrInvalidAmount, requested)
	}
	limit, err := l.ComputeMaxDebit(ctx, purchase)
	if err != nil {
		return model.Transaction{}, err
	}
	return l.ApplyDebit(ctx, userID, decimal.Min(requested, limit), purchase, employeeID)
}

// AwardReviewBonus credits the per-review bonus.
func (l *BonusLedger) AwardReviewBonus(ctx context.Context, userID, employeeID string) (model.Transaction, error) {
	s, err := l.Settings(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	return l.ApplyCredit(ctx, userID, decimal.NewFromInt(int64(s.VotingBonus)), decimal.Zero, employeeID)
}

// Balance returns the balance of userID.
func (l *BonusLedger) Balance(ctx context.Context, userID string) (model.BonusBalance, error) {
	b, err := l.store.Balance(ctx, userID)
	if err != nil {
		return b, balanceErr(userID, err)
	}
	return b, nil
}

// History returns the latest transactions of userID, newest first.
func (l *BonusLedger) History(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	return l.store.History(ctx, userID, limit)
}

// Transactions lists the ledger with optional filters.
func (l *BonusLedger) Transactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Type != "" {
		t, ok := model.ParseTransactionType(string(f.Type))
		if !ok {
			return nil, fmt.Errorf("%w: transaction type %q", ErrInvalidSetting, f.Type)
		}
		f.Type = t
	}
	return l.store.Transactions(ctx, f)
}

// UpdateSettings changes one settings field and returns the new row.
// Rates must be within 0..100, bonus amounts must not be negative.
func (l *BonusLedger) UpdateSettings(ctx context.Context, field string, value int) (model.BonusSettings, error) {
	f, ok := model.ParseSettingField(field)
	if !ok {
		return model.BonusSettings{}, fmt.Errorf("%w: %q", ErrSettingNotFound, field)
	}
	if value < 0 || (f.Percentage() && value > 100) {
		return model.BonusSettings{}, fmt.Errorf("%w: %s = %d", ErrInvalidSetting, f, value)
	}
	s, err := l.store.UpdateSettings(ctx, l.defaults, func(cur model.BonusSettings) (model.BonusSettings, error) {
		return cur.With(f, value), nil
	})
	if err != nil {
		return s, fmt.Errorf("update bonus settings: %w", err)
	}
	l.log.Info("bonus settings updated", zap.String("field", string(f)), zap.Int("value", value))
	return s, nil
}

func (l *BonusLedger) notifyBalance(ctx context.Context, t model.Transaction) {
	sign := "+"
	if t.Type == model.TransactionDebit {
		sign = "-"
	}
	deliver(ctx, l.notifier, l.log, model.Notification{
		Recipient: t.UserID,
		Kind:      model.NotifyBalanceChanged,
		Text:      fmt.Sprintf("%s%s bonuses, balance %s", sign, t.BonusAmount.StringFixed(2), t.BalanceAfter.StringFixed(2)),
		CreatedAt: t.Date,
	})
}

func balanceErr(userID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return fmt.Errorf("balance of %s: %w", userID, err)
}
