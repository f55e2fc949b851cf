package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerwell/ledgerwell/internal/accounts"
	"github.com/ledgerwell/ledgerwell/internal/id"
	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
	"github.com/ledgerwell/ledgerwell/internal/store/memstore"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// faultStore fails every InsertTransaction once armed.
type faultStore struct {
	store.Store
	mu  sync.Mutex
	err error
}

func (f *faultStore) arm(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *faultStore) Update(ctx context.Context, fn func(store.Tx) error) error {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	return f.Store.Update(ctx, func(tx store.Tx) error {
		return fn(faultTx{Tx: tx, err: err})
	})
}

type faultTx struct {
	store.Tx
	err error
}

func (t faultTx) InsertTransaction(ctx context.Context, rec model.TransactionRecord) (model.TransactionRecord, error) {
	if t.err != nil {
		return model.TransactionRecord{}, t.err
	}
	return t.Tx.InsertTransaction(ctx, rec)
}

type fixture struct {
	svc   *Service
	store *faultStore
	owner string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fs := &faultStore{Store: memstore.New()}
	u := model.User{ID: id.NewUserID(), Username: "alice", Password: "pw"}
	require.NoError(t, fs.Update(context.Background(), func(tx store.Tx) error {
		return tx.InsertUser(context.Background(), u)
	}))
	return fixture{svc: NewService(fs, dec("2.5"), nil), store: fs, owner: u.ID}
}

func (f fixture) open(t *testing.T, v model.Variant, initial string) model.Account {
	t.Helper()
	a, err := f.svc.OpenAccount(context.Background(), accounts.OpenParams{
		OwnerUserID: f.owner, Variant: v, InitialDeposit: dec(initial),
	})
	require.NoError(t, err)
	return a
}

func (f fixture) balance(t *testing.T, v model.Variant) decimal.Decimal {
	t.Helper()
	sum, err := f.svc.BalanceSummary(context.Background(), f.owner)
	require.NoError(t, err)
	if v == model.VariantSavings {
		require.NotNil(t, sum.Savings)
		return *sum.Savings
	}
	require.NotNil(t, sum.Checking)
	return *sum.Checking
}

func TestOpenAccount_InitialDepositRecorded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.open(t, model.VariantChecking, "100")

	hist, err := f.svc.History(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, model.KindInitialDeposit, hist[0].Kind)
	assert.Equal(t, a.Number, hist[0].ToAccount)
	assert.Empty(t, hist[0].FromAccount)
	assert.True(t, hist[0].Amount.Equal(dec("100")))
}

func TestOpenAccount_ZeroDepositNoRecord(t *testing.T) {
	f := newFixture(t)
	f.open(t, model.VariantSavings, "0")

	hist, err := f.svc.History(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Empty(t, hist)
	assert.True(t, f.balance(t, model.VariantSavings).IsZero())
}

func TestOpenAccount_FailedRecordLeavesNoAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.arm(fmt.Errorf("%w: disk full", model.ErrPersistence))

	_, err := f.svc.OpenAccount(ctx, accounts.OpenParams{OwnerUserID: f.owner, Variant: model.VariantChecking, InitialDeposit: dec("50")})
	require.ErrorIs(t, err, model.ErrPersistence)

	accts, err := f.svc.Accounts(ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, accts)
}

func TestDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.open(t, model.VariantChecking, "100")

	r, err := f.svc.Deposit(ctx, f.owner, model.VariantChecking, dec("50"))
	require.NoError(t, err)
	assert.True(t, r.Account.Balance.Equal(dec("150")))
	assert.Equal(t, a.Number, r.Record.ToAccount)

	r, err = f.svc.Withdraw(ctx, f.owner, model.VariantChecking, dec("30"))
	require.NoError(t, err)
	assert.True(t, r.Account.Balance.Equal(dec("120")))
	assert.Equal(t, model.KindWithdrawal, r.Record.Kind)
	assert.Equal(t, a.Number, r.Record.FromAccount)
	assert.Empty(t, r.Record.ToAccount)

	hist, err := f.svc.History(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, []model.Kind{model.KindWithdrawal, model.KindDeposit, model.KindInitialDeposit},
		[]model.Kind{hist[0].Kind, hist[1].Kind, hist[2].Kind})

	sum := decimal.Zero
	for _, rec := range hist {
		sum = sum.Add(rec.SignedAmount())
	}
	assert.True(t, sum.Equal(f.balance(t, model.VariantChecking)), "records must explain the balance")
}

func TestRejectedMovesLeaveNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t, model.VariantChecking, "100")

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"zero deposit", func() error {
			_, err := f.svc.Deposit(ctx, f.owner, model.VariantChecking, decimal.Zero)
			return err
		}, model.ErrInvalidAmount},
		{"zero withdrawal", func() error {
			_, err := f.svc.Withdraw(ctx, f.owner, model.VariantChecking, decimal.Zero)
			return err
		}, model.ErrInvalidAmount},
		{"negative deposit", func() error {
			_, err := f.svc.Deposit(ctx, f.owner, model.VariantChecking, dec("-5"))
			return err
		}, model.ErrInvalidAmount},
		{"overdraw", func() error {
			_, err := f.svc.Withdraw(ctx, f.owner, model.VariantChecking, dec("100.01"))
			return err
		}, model.ErrInsufficientFunds},
		{"missing savings", func() error {
			_, err := f.svc.Deposit(ctx, f.owner, model.VariantSavings, dec("1"))
			return err
		}, model.ErrAccountNotFound},
		{"unknown variant", func() error {
			_, err := f.svc.Deposit(ctx, f.owner, "brokerage", dec("1"))
			return err
		}, model.ErrInvalidVariant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
			assert.True(t, f.balance(t, model.VariantChecking).Equal(dec("100")))
			hist, err := f.svc.History(ctx, f.owner)
			require.NoError(t, err)
			assert.Len(t, hist, 1)
		})
	}
}

func TestDeposit_FailedRecordRollsBackBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t, model.VariantChecking, "100")
	f.store.arm(fmt.Errorf("%w: injected", model.ErrPersistence))

	_, err := f.svc.Deposit(ctx, f.owner, model.VariantChecking, dec("25"))
	require.ErrorIs(t, err, model.ErrPersistence)

	f.store.arm(nil)
	assert.True(t, f.balance(t, model.VariantChecking).Equal(dec("100")))
	hist, err := f.svc.History(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestInterest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t, model.VariantSavings, "100")

	preview, err := f.svc.CalculateInterest(ctx, f.owner, 12)
	require.NoError(t, err)
	assert.True(t, preview.Equal(dec("2.5")))
	assert.True(t, f.balance(t, model.VariantSavings).Equal(dec("100")), "preview must not change the balance")

	r, err := f.svc.ApplyInterest(ctx, f.owner, 12)
	require.NoError(t, err)
	assert.True(t, r.Record.Amount.Equal(dec("2.5")))
	assert.Equal(t, model.KindInterestCredit, r.Record.Kind)
	assert.True(t, r.Account.Balance.Equal(dec("102.5")))

	_, err = f.svc.ApplyInterest(ctx, f.owner, 0)
	require.ErrorIs(t, err, model.ErrNoInterestDue)
	assert.True(t, f.balance(t, model.VariantSavings).Equal(dec("102.5")))
}

func TestInterest_NoSavingsAccount(t *testing.T) {
	f := newFixture(t)
	f.open(t, model.VariantChecking, "100")

	_, err := f.svc.CalculateInterest(context.Background(), f.owner, 12)
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
	_, err = f.svc.ApplyInterest(context.Background(), f.owner, 12)
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
}

func TestConcurrentDeposits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t, model.VariantChecking, "0")

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Deposit(ctx, f.owner, model.VariantChecking, dec("1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.True(t, f.balance(t, model.VariantChecking).Equal(dec("100")))
	hist, err := f.svc.History(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, hist, 100)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t, model.VariantChecking, "50")

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Withdraw(ctx, f.owner, model.VariantChecking, dec("1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	}
	assert.Equal(t, 50, succeeded)
	assert.True(t, f.balance(t, model.VariantChecking).IsZero())

	hist, err := f.svc.History(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, hist, 51)
}

func TestSummaryAndAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sum, err := f.svc.BalanceSummary(ctx, f.owner)
	require.NoError(t, err)
	assert.Nil(t, sum.Checking)
	assert.Nil(t, sum.Savings)

	f.open(t, model.VariantSavings, "5")
	f.open(t, model.VariantChecking, "7")

	accts, err := f.svc.Accounts(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, accts, 2)
	assert.Equal(t, model.VariantChecking, accts[0].Variant)
	assert.Equal(t, model.VariantSavings, accts[1].Variant)
}

func TestRecentAndSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t, model.VariantChecking, "1")
	for range 12 {
		_, err := f.svc.Deposit(ctx, f.owner, model.VariantChecking, dec("1"))
		require.NoError(t, err)
	}

	recent, err := f.svc.Recent(ctx, f.owner, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 10)
	assert.Equal(t, model.KindDeposit, recent[9].Kind)

	today := time.Now().UTC()
	found, err := f.svc.Search(ctx, f.owner, today.AddDate(0, 0, -1), today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, found, 13)

	_, err = f.svc.Search(ctx, f.owner, today, today.AddDate(0, 0, -1))
	assert.True(t, errors.Is(err, model.ErrInvalidDateRange))
}

// skewStore writes every balance one cent higher than asked.
type skewStore struct{ store.Store }

func (s skewStore) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.Store.Update(ctx, func(tx store.Tx) error { return fn(skewTx{tx}) })
}

type skewTx struct{ store.Tx }

func (t skewTx) SetBalance(ctx context.Context, v model.Variant, number string, bal decimal.Decimal) error {
	return t.Tx.SetBalance(ctx, v, number, bal.Add(dec("0.01")))
}

func TestDeposit_ConsistencyViolationRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t, model.VariantChecking, "100")

	skewed := NewService(skewStore{f.store}, dec("2.5"), nil)
	_, err := skewed.Deposit(ctx, f.owner, model.VariantChecking, dec("1"))
	require.ErrorIs(t, err, model.ErrConsistency)

	assert.True(t, f.balance(t, model.VariantChecking).Equal(dec("100")))
	hist, err := f.svc.History(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}
