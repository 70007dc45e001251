package service

import (
	"context"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tire-storage-bonus/internal/memstore"
	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

func newLedger(t *testing.T) (*BonusLedger, *memstore.Store, *recordingNotifier) {
	t.Helper()
	st := memstore.New()
	n := &recordingNotifier{}
	return NewBonusLedger(st, st, n, nil), st, n
}

func TestCreditThenClampedDebit(t *testing.T) {
	ctx := context.Background()
	l, st, n := newLedger(t)
	addUser(t, st, "u1", model.RoleCustomer, "0")

	credit, err := l.ApplyCredit(ctx, "u1", dec("50"), dec("1000"), "empA")
	require.NoError(t, err)
	require.Equal(t, model.TransactionCredit, credit.Type)
	require.True(t, credit.BonusAmount.Equal(dec("50")))
	require.True(t, credit.BalanceAfter.Equal(dec("50")))
	require.Equal(t, "u1", n.last().Recipient)

	debit, err := l.ApplyDebit(ctx, "u1", dec("80"), dec("200"), "empB")
	require.NoError(t, err)
	require.Equal(t, model.TransactionDebit, debit.Type)
	require.True(t, debit.BonusAmount.Equal(dec("50")), "debit records the clamped amount")
	require.Equal(t, "empB", debit.WorkerID)

	b, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, b.Balance.IsZero())

	hist, err := l.History(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, model.TransactionDebit, hist[0].Type)
	require.Equal(t, model.TransactionCredit, hist[1].Type)
}

func TestBalanceNeverNegative(t *testing.T) {
	ctx := context.Background()
	l, st, _ := newLedger(t)
	addUser(t, st, "u1", model.RoleCustomer, "0")
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		amount := decimal.NewFromInt(int64(rnd.Intn(300)))
		var err error
		if rnd.Intn(2) == 0 {
			_, err = l.ApplyCredit(ctx, "u1", amount, amount, "emp")
		} else {
			_, err = l.ApplyDebit(ctx, "u1", amount, amount, "emp")
		}
		require.NoError(t, err)
		b, err := l.Balance(ctx, "u1")
		require.NoError(t, err)
		require.False(t, b.Balance.IsNegative(), "step %d", i)
	}
}

func TestLedgerRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	l, st, _ := newLedger(t)
	addUser(t, st, "u1", model.RoleCustomer, "10")

	_, err := l.ApplyCredit(ctx, "u1", dec("-1"), dec("0"), "emp")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.ApplyDebit(ctx, "u1", dec("-1"), dec("0"), "emp")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = l.ApplyCredit(ctx, "ghost", dec("1"), dec("10"), "emp")
	require.ErrorIs(t, err, ErrUserNotFound)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = l.ApplyDebit(ctx, "ghost", dec("1"), dec("10"), "emp")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCashbackIsLinear(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)

	for _, raw := range []string{"0", "1", "19.99", "333.33", "1000", "12345.67"} {
		x := dec(raw)
		one, err := l.ComputeCashback(ctx, x, false)
		require.NoError(t, err)
		two, err := l.ComputeCashback(ctx, x.Mul(decimal.NewFromInt(2)), false)
		require.NoError(t, err)
		diff := two.Sub(one.Mul(decimal.NewFromInt(2))).Abs()
		require.True(t, diff.LessThanOrEqual(dec("0.01")), "x=%s diff=%s", raw, diff)
	}

	vip, err := l.ComputeCashback(ctx, dec("1000"), true)
	require.NoError(t, err)
	require.True(t, vip.Equal(dec("100")))

	// 5% of 0.30 is 0.015, rounded half-up.
	c, err := l.ComputeCashback(ctx, dec("0.30"), false)
	require.NoError(t, err)
	require.Equal(t, "0.02", c.StringFixed(2))

	limit, err := l.ComputeMaxDebit(ctx, dec("200"))
	require.NoError(t, err)
	require.True(t, limit.Equal(dec("60")))

	_, err = l.ComputeCashback(ctx, dec("-5"), false)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)

	before, err := l.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, model.DefaultBonusSettings(), before)

	updated, err := l.UpdateSettings(ctx, "cashback", 7)
	require.NoError(t, err)
	require.Equal(t, 7, updated.Cashback)

	after, err := l.Settings(ctx)
	require.NoError(t, err)
	want := before
	want.Cashback = 7
	require.Equal(t, want, after)

	_, err = l.UpdateSettings(ctx, "bogus", 1)
	require.ErrorIs(t, err, ErrSettingNotFound)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, ErrInvalidSetting)

	_, err = l.UpdateSettings(ctx, "max_debit", 101)
	require.ErrorIs(t, err, ErrInvalidSetting)
	_, err = l.UpdateSettings(ctx, "voting_bonus", -1)
	require.ErrorIs(t, err, ErrInvalidSetting)

	big, err := l.UpdateSettings(ctx, "start_bonus_balance", 1000)
	require.NoError(t, err)
	require.Equal(t, 1000, big.StartBonusBalance)
}

func TestAccrueAndRedeemPurchase(t *testing.T) {
	ctx := context.Background()
	l, st, _ := newLedger(t)
	addUser(t, st, "u1", model.RoleCustomer, "500")
	addUser(t, st, "vip", model.RoleCustomer, "0")
	require.NoError(t, st.SetVIP(ctx, "vip", true))

	tx, err := l.AccruePurchase(ctx, "u1", dec("1000"), "emp")
	require.NoError(t, err)
	require.True(t, tx.BonusAmount.Equal(dec("50")))

	tx, err = l.AccruePurchase(ctx, "vip", dec("1000"), "emp")
	require.NoError(t, err)
	require.True(t, tx.BonusAmount.Equal(dec("100")))

	// 30% of 1000 caps the 400 requested.
	tx, err = l.RedeemPurchase(ctx, "u1", dec("400"), dec("1000"), "emp")
	require.NoError(t, err)
	require.True(t, tx.BonusAmount.Equal(dec("300")))
	require.True(t, tx.BalanceAfter.Equal(dec("250")))

	tx, err = l.AwardReviewBonus(ctx, "u1", "emp")
	require.NoError(t, err)
	require.True(t, tx.BonusAmount.Equal(dec("100")))
	require.True(t, tx.Amount.IsZero())
}

func TestNotifyFailureKeepsCredit(t *testing.T) {
	ctx := context.Background()
	l, st, n := newLedger(t)
	n.fail = true
	addUser(t, st, "u1", model.RoleCustomer, "0")

	_, err := l.ApplyCredit(ctx, "u1", dec("10"), dec("200"), "emp")
	require.NoError(t, err)
	b, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, b.Balance.Equal(dec("10")))
}

func TestTransactionsFilter(t *testing.T) {
	ctx := context.Background()
	l, st, _ := newLedger(t)
	addUser(t, st, "u1", model.RoleCustomer, "100")
	_, err := l.ApplyCredit(ctx, "u1", dec("5"), dec("100"), "a")
	require.NoError(t, err)
	_, err = l.ApplyDebit(ctx, "u1", dec("5"), dec("100"), "b")
	require.NoError(t, err)

	rows, err := l.Transactions(ctx, model.TransactionFilter{WorkerID: "b"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, model.TransactionDebit, rows[0].Type)

	_, err = l.Transactions(ctx, model.TransactionFilter{Type: "refund"})
	require.ErrorIs(t, err, ErrInvalidSetting)
}
