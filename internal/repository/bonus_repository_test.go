package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

func TestUpdateBalanceLocksAndAppends(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBonusRepo(db)
	when := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM bonus_balances WHERE user_id = ? FOR UPDATE`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("100.00"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bonus_balances SET balance = ?`)).
		WithArgs("70", when, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bonus_transactions`)).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	tx, err := repo.UpdateBalance(context.Background(), "u1", func(cur decimal.Decimal) (model.Transaction, error) {
		require.True(t, cur.Equal(decimal.NewFromInt(100)))
		spent := decimal.NewFromInt(30)
		return model.Transaction{
			WorkerID:     "w1",
			Date:         when,
			Type:         model.TransactionDebit,
			Amount:       decimal.NewFromInt(200),
			BonusAmount:  spent,
			BalanceAfter: cur.Sub(spent),
		}, nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(42), tx.ID)
	require.Equal(t, "u1", tx.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBalanceMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBonusRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM bonus_balances`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectRollback()

	_, err := repo.UpdateBalance(context.Background(), "ghost", func(decimal.Decimal) (model.Transaction, error) {
		t.Fatal("apply must not run for a missing balance")
		return model.Transaction{}, nil
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBalanceApplyErrorRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBonusRepo(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM bonus_balances`)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("5.00"))
	mock.ExpectRollback()

	_, err := repo.UpdateBalance(context.Background(), "u1", func(decimal.Decimal) (model.Transaction, error) {
		return model.Transaction{}, boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsSeedsDefaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBonusRepo(db)
	d := model.DefaultBonusSettings()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT IGNORE INTO bonus_settings`)).
		WithArgs(5, 30, 500, 100, 10).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bonus_settings WHERE id = 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"cashback", "max_debit", "start_bonus_balance", "voting_bonus", "vip_cashback"}).
			AddRow(5, 30, 500, 100, 10))

	s, err := repo.Settings(context.Background(), d)
	require.NoError(t, err)
	require.Equal(t, d, s)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionsBuildsFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBonusRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE worker_id = ? AND transaction_type = ? ORDER BY transaction_date DESC, id DESC LIMIT ? OFFSET ?`)).
		WithArgs("w1", "CREDIT", 20, 40).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "worker_id", "transaction_date", "transaction_type", "amount", "bonus_amount", "balance_after"}).
			AddRow(1, "u1", "w1", time.Now(), "CREDIT", "1000.00", "50.00", "550.00"))

	rows, err := repo.Transactions(context.Background(), model.TransactionFilter{
		WorkerID: "w1", Type: model.TransactionCredit, Limit: 20, Offset: 40,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "50", rows[0].BonusAmount.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
