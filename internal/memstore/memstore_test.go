package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/repository"
)

func TestCreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	st := New()
	phone := "+7 900 000 00 00"

	require.NoError(t, st.Create(ctx, model.User{ID: "u1", Name: "Ann", Phone: &phone}, decimal.NewFromInt(500)))
	require.ErrorIs(t, st.Create(ctx, model.User{ID: "u1", Name: "Ann"}, decimal.Zero), repository.ErrConflict)
	require.ErrorIs(t, st.Create(ctx, model.User{ID: "u2", Name: "Bob", Phone: &phone}, decimal.Zero), repository.ErrConflict)

	b, err := st.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, b.Balance.Equal(decimal.NewFromInt(500)))

	_, err = st.GetByID(ctx, "u2")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateBalanceLeavesStateOnFailure(t *testing.T) {
	ctx := context.Background()
	st := New()
	require.NoError(t, st.Create(ctx, model.User{ID: "u1"}, decimal.NewFromInt(10)))

	_, err := st.UpdateBalance(ctx, "u1", func(decimal.Decimal) (model.Transaction, error) {
		return model.Transaction{}, errors.New("rejected")
	})
	require.Error(t, err)
	_, err = st.UpdateBalance(ctx, "u1", func(cur decimal.Decimal) (model.Transaction, error) {
		return model.Transaction{BalanceAfter: cur.Sub(decimal.NewFromInt(11))}, nil
	})
	require.Error(t, err)

	b, err := st.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, b.Balance.Equal(decimal.NewFromInt(10)))
	hist, err := st.History(ctx, "u1", 10)
	require.NoError(t, err)
	require.Empty(t, hist)

	_, err = st.UpdateBalance(ctx, "ghost", func(cur decimal.Decimal) (model.Transaction, error) {
		return model.Transaction{BalanceAfter: cur}, nil
	})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestQRCodesExpireOnStoreClock(t *testing.T) {
	ctx := context.Background()
	st := New()
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st.SetClock(func() time.Time { return clock })

	require.NoError(t, st.Save(ctx, model.QRCode{Code: "abc", UserID: "u1"}, time.Minute))
	qr, err := st.Load(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "u1", qr.UserID)

	clock = clock.Add(time.Minute)
	_, err = st.Load(ctx, "abc")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
