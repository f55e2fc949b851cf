package accounts

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerwell/ledgerwell/internal/id"
	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
	"github.com/ledgerwell/ledgerwell/internal/store/memstore"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (*Service, store.Store, string) {
	t.Helper()
	s := memstore.New()
	u := model.User{ID: id.NewUserID(), Username: "alice", Password: "pw"}
	require.NoError(t, s.Update(context.Background(), func(tx store.Tx) error {
		return tx.InsertUser(context.Background(), u)
	}))
	return NewService(s, dec("2.5")), s, u.ID
}

func open(t *testing.T, svc *Service, s store.Store, p OpenParams) (model.Account, error) {
	t.Helper()
	var a model.Account
	err := s.Update(context.Background(), func(tx store.Tx) error {
		var err error
		a, err = svc.Open(context.Background(), tx, p)
		return err
	})
	return a, err
}

func TestNew_Defaults(t *testing.T) {
	svc := NewService(memstore.New(), dec("2.5"))

	chk, err := svc.New(OpenParams{OwnerUserID: "u", Variant: model.VariantChecking, InitialDeposit: dec("10")})
	require.NoError(t, err)
	assert.True(t, id.HasPrefix(chk.Number, id.CheckingPrefix))
	assert.True(t, chk.InterestRate.IsZero())
	assert.True(t, chk.Balance.Equal(dec("10")))

	sav, err := svc.New(OpenParams{OwnerUserID: "u", Variant: model.VariantSavings})
	require.NoError(t, err)
	assert.True(t, id.HasPrefix(sav.Number, id.SavingsPrefix))
	assert.True(t, sav.InterestRate.Equal(dec("2.5")))

	rate := dec("4")
	sav, err = svc.New(OpenParams{OwnerUserID: "u", Variant: model.VariantSavings, InterestRate: &rate})
	require.NoError(t, err)
	assert.True(t, sav.InterestRate.Equal(dec("4")))
}

func TestNew_Invalid(t *testing.T) {
	svc := NewService(memstore.New(), dec("2.5"))
	neg := dec("-1")

	tests := []struct {
		name string
		p    OpenParams
		want error
	}{
		{"negative deposit", OpenParams{Variant: model.VariantChecking, InitialDeposit: neg}, model.ErrInvalidAmount},
		{"sub-cent deposit", OpenParams{Variant: model.VariantChecking, InitialDeposit: dec("1.001")}, model.ErrInvalidAmount},
		{"negative rate", OpenParams{Variant: model.VariantSavings, InterestRate: &neg}, model.ErrInvalidRate},
		{"unknown variant", OpenParams{Variant: "brokerage"}, model.ErrInvalidVariant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.New(tt.p)
			require.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestOpen_UnknownOwner(t *testing.T) {
	svc, s, _ := setup(t)
	_, err := open(t, svc, s, OpenParams{OwnerUserID: "USER-missing", Variant: model.VariantChecking})
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestOpen_OnePerVariant(t *testing.T) {
	svc, s, owner := setup(t)
	_, err := open(t, svc, s, OpenParams{OwnerUserID: owner, Variant: model.VariantChecking})
	require.NoError(t, err)
	_, err = open(t, svc, s, OpenParams{OwnerUserID: owner, Variant: model.VariantChecking})
	assert.ErrorIs(t, err, model.ErrAccountExists)

	_, err = open(t, svc, s, OpenParams{OwnerUserID: owner, Variant: model.VariantSavings})
	assert.NoError(t, err)
}

func TestDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	svc, s, owner := setup(t)
	acct, err := open(t, svc, s, OpenParams{OwnerUserID: owner, Variant: model.VariantChecking, InitialDeposit: dec("100")})
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		a, err := svc.Deposit(ctx, tx, owner, model.VariantChecking, dec("25.50"))
		require.NoError(t, err)
		assert.True(t, a.Balance.Equal(dec("125.50")))
		a, err = svc.Withdraw(ctx, tx, owner, model.VariantChecking, dec("0.50"))
		require.NoError(t, err)
		assert.True(t, a.Balance.Equal(dec("125")))
		return nil
	}))

	bal, err := svc.RefreshBalance(ctx, acct)
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("125")))
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	svc, s, owner := setup(t)
	acct, err := open(t, svc, s, OpenParams{OwnerUserID: owner, Variant: model.VariantChecking, InitialDeposit: dec("10")})
	require.NoError(t, err)

	err = s.Update(ctx, func(tx store.Tx) error {
		_, err := svc.Withdraw(ctx, tx, owner, model.VariantChecking, dec("10.01"))
		return err
	})
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	bal, err := svc.RefreshBalance(ctx, acct)
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("10")))
}

func TestApplyInterest(t *testing.T) {
	ctx := context.Background()
	svc, s, owner := setup(t)
	_, err := open(t, svc, s, OpenParams{OwnerUserID: owner, Variant: model.VariantSavings, InitialDeposit: dec("100")})
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		a, interest, err := svc.ApplyInterest(ctx, tx, owner, 12)
		require.NoError(t, err)
		assert.True(t, interest.Equal(dec("2.5")))
		assert.True(t, a.Balance.Equal(dec("102.5")))
		return nil
	}))

	err = s.Update(ctx, func(tx store.Tx) error {
		_, _, err := svc.ApplyInterest(ctx, tx, owner, 0)
		return err
	})
	assert.ErrorIs(t, err, model.ErrNoInterestDue)
}

func TestLookupByOwner(t *testing.T) {
	ctx := context.Background()
	svc, s, owner := setup(t)

	_, ok, err := svc.LookupByOwner(ctx, owner, model.VariantSavings)
	require.NoError(t, err)
	assert.False(t, ok)

	opened, err := open(t, svc, s, OpenParams{OwnerUserID: owner, Variant: model.VariantSavings})
	require.NoError(t, err)

	got, ok, err := svc.LookupByOwner(ctx, owner, model.VariantSavings)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, opened.Number, got.Number)
}
