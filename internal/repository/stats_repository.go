package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

// StatsRepo runs the aggregate queries behind the admin statistics and
// the monthly report.  The transaction log is the only source.
type StatsRepo struct{ db *sqlx.DB }

// NewStatsRepo returns a StatsRepo bound to db.
func NewStatsRepo(db *sqlx.DB) *StatsRepo { return &StatsRepo{db: db} }

// Overview aggregates all transactions since the given time (all time
// when since is nil).
func (r *StatsRepo) Overview(ctx context.Context, since *time.Time) (model.Statistics, error) {
	where, args := "", []any{}
	if since != nil {
		where = " WHERE transaction_date >= ?"
		args = append(args, *since)
	}
	var s model.Statistics
	err := r.db.GetContext(ctx, &s, `SELECT
		(SELECT COUNT(*) FROM users) AS total_users,
		COALESCE(SUM(amount), 0) AS total_amount,
		COALESCE(SUM(CASE WHEN transaction_type = 'CREDIT' THEN bonus_amount END), 0) AS total_bonus_amount,
		COUNT(*) AS total_transactions,
		COALESCE(AVG(amount), 0) AS average_purchase_amount,
		COUNT(DISTINCT user_id) AS active_users,
		(SELECT COALESCE(SUM(balance), 0) FROM bonus_balances) AS total_bonus_balance
		FROM bonus_transactions`+where, args...)
	return s, err
}

// Worker aggregates the operations performed by workerID.  It returns
// ErrNotFound when no such user exists.
func (r *StatsRepo) Worker(ctx context.Context, workerID string, since *time.Time) (model.WorkerStatistics, error) {
	var ws model.WorkerStatistics
	err := r.db.GetContext(ctx, &ws.Name, `SELECT name FROM users WHERE user_id = ?`, workerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ws, ErrNotFound
	}
	if err != nil {
		return ws, err
	}
	ws.UserID = workerID

	var assigned sql.NullTime
	if err := r.db.GetContext(ctx, &assigned,
		`SELECT MAX(assigned_date) FROM role_history WHERE user_id = ?`, workerID); err != nil {
		return ws, err
	}
	if assigned.Valid {
		t := assigned.Time
		ws.RoleAssignedDate = &t
	}

	query := `SELECT
		COUNT(*) AS total_transactions,
		COALESCE(SUM(amount), 0) AS total_amount,
		COALESCE(SUM(CASE WHEN transaction_type = 'CREDIT' THEN bonus_amount END), 0) AS total_add,
		COALESCE(SUM(CASE WHEN transaction_type = 'DEBIT' THEN bonus_amount END), 0) AS total_remove
		FROM bonus_transactions WHERE worker_id = ?`
	args := []any{workerID}
	if since != nil {
		query += " AND transaction_date >= ?"
		args = append(args, *since)
	}
	err = r.db.GetContext(ctx, &ws, query, args...)
	return ws, err
}

// Monthly aggregates the half-open interval [from, to).
func (r *StatsRepo) Monthly(ctx context.Context, from, to time.Time) (model.MonthlyReport, error) {
	var m model.MonthlyReport
	err := r.db.GetContext(ctx, &m, `SELECT
		(SELECT COUNT(*) FROM users WHERE registration_date >= ? AND registration_date < ?) AS new_users,
		COUNT(CASE WHEN amount > 0 THEN 1 END) AS sales_count,
		COALESCE(SUM(amount), 0) AS sales_amount,
		COALESCE(SUM(CASE WHEN transaction_type = 'CREDIT' THEN bonus_amount END), 0) AS bonuses_added,
		COALESCE(SUM(CASE WHEN transaction_type = 'DEBIT' THEN bonus_amount END), 0) AS bonuses_spent
		FROM bonus_transactions WHERE transaction_date >= ? AND transaction_date < ?`,
		from, to, from, to)
	return m, err
}
