package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

const transactionColumns = `id, user_id, worker_id, transaction_date, transaction_type, amount, bonus_amount, balance_after`

const settingsColumns = `cashback, max_debit, start_bonus_balance, voting_bonus, vip_cashback`

// BonusRepo provides access to bonus_balances, bonus_transactions and the
// bonus_settings singleton.  Balance changes always run in one
// transaction together with the ledger row that explains them.
type BonusRepo struct {
	db *sqlx.DB
}

// NewBonusRepo returns a BonusRepo bound to db.
func NewBonusRepo(db *sqlx.DB) *BonusRepo { return &BonusRepo{db: db} }

// Balance returns the balance row of userID or ErrNotFound.
func (r *BonusRepo) Balance(ctx context.Context, userID string) (model.BonusBalance, error) {
	var b model.BonusBalance
	err := r.db.GetContext(ctx, &b,
		`SELECT user_id, balance, updated_at FROM bonus_balances WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	return b, err
}

// UpdateBalance locks the balance row of userID, passes the current
// balance to apply and persists what apply returns: the new balance
// (Transaction.BalanceAfter) and the ledger row itself.  Nothing is
// written when apply fails.  The returned transaction carries its id.
func (r *BonusRepo) UpdateBalance(ctx context.Context, userID string, apply func(current decimal.Decimal) (model.Transaction, error)) (model.Transaction, error) {
	var out model.Transaction
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current decimal.Decimal
		err := tx.GetContext(ctx, &current,
			`SELECT balance FROM bonus_balances WHERE user_id = ? FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		t, err := apply(current)
		if err != nil {
			return err
		}
		if t.BalanceAfter.IsNegative() {
			return fmt.Errorf("balance of %s would become %s", userID, t.BalanceAfter)
		}
		t.UserID = userID

		if _, err := tx.ExecContext(ctx,
			`UPDATE bonus_balances SET balance = ?, updated_at = ? WHERE user_id = ?`,
			t.BalanceAfter, t.Date, userID); err != nil {
			return err
		}
		res, err := tx.NamedExecContext(ctx,
			`INSERT INTO bonus_transactions (user_id, worker_id, transaction_date, transaction_type, amount, bonus_amount, balance_after)
			 VALUES (:user_id, :worker_id, :transaction_date, :transaction_type, :amount, :bonus_amount, :balance_after)`, t)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = uint64(id)
		out = t
		return nil
	})
	return out, err
}

// History returns the latest limit transactions of userID, newest first.
func (r *BonusRepo) History(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	out := []model.Transaction{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+transactionColumns+` FROM bonus_transactions
		 WHERE user_id = ? ORDER BY transaction_date DESC, id DESC LIMIT ?`, userID, limit)
	return out, err
}

// Transactions lists ledger rows matching f, newest first.
func (r *BonusRepo) Transactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, error) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.WorkerID != "" {
		conds = append(conds, "worker_id = ?")
		args = append(args, f.WorkerID)
	}
	if f.Type != "" {
		conds = append(conds, "transaction_type = ?")
		args = append(args, f.Type)
	}
	if f.From != nil {
		conds = append(conds, "transaction_date >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, "transaction_date < ?")
		args = append(args, *f.To)
	}
	query := `SELECT ` + transactionColumns + ` FROM bonus_transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY transaction_date DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	out := []model.Transaction{}
	err := r.db.SelectContext(ctx, &out, query, args...)
	return out, err
}

func ensureSettings(ctx context.Context, ex sqlx.ExecerContext, d model.BonusSettings) error {
	_, err := ex.ExecContext(ctx,
		`INSERT IGNORE INTO bonus_settings (id, `+settingsColumns+`) VALUES (1, ?, ?, ?, ?, ?)`,
		d.Cashback, d.MaxDebit, d.StartBonusBalance, d.VotingBonus, d.VipCashback)
	return err
}

// Settings returns the singleton settings row, creating it from defaults
// when it is missing.
func (r *BonusRepo) Settings(ctx context.Context, defaults model.BonusSettings) (model.BonusSettings, error) {
	if err := ensureSettings(ctx, r.db, defaults); err != nil {
		return model.BonusSettings{}, err
	}
	var s model.BonusSettings
	err := r.db.GetContext(ctx, &s, `SELECT `+settingsColumns+` FROM bonus_settings WHERE id = 1`)
	return s, err
}

// UpdateSettings locks the singleton row, lets apply compute the new
// values and writes them back.
func (r *BonusRepo) UpdateSettings(ctx context.Context, defaults model.BonusSettings, apply func(model.BonusSettings) (model.BonusSettings, error)) (model.BonusSettings, error) {
	var out model.BonusSettings
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := ensureSettings(ctx, tx, defaults); err != nil {
			return err
		}
		var cur model.BonusSettings
		if err := tx.GetContext(ctx, &cur, `SELECT `+settingsColumns+` FROM bonus_settings WHERE id = 1 FOR UPDATE`); err != nil {
			return err
		}
		next, err := apply(cur)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx,
			`UPDATE bonus_settings SET cashback = :cashback, max_debit = :max_debit,
			 start_bonus_balance = :start_bonus_balance, voting_bonus = :voting_bonus,
			 vip_cashback = :vip_cashback WHERE id = 1`, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}
