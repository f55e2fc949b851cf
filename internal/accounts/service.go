package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerwell/ledgerwell/internal/id"
	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
)

// Service implements account rules shared by both variants. Mutating
// methods take the caller's Tx so they join its unit of work.
type Service struct {
	store       store.Store
	defaultRate decimal.Decimal
}

// NewService creates an accounts Service. defaultRate applies to savings
// accounts opened without an explicit rate.
func NewService(s store.Store, defaultRate decimal.Decimal) *Service {
	return &Service{store: s, defaultRate: defaultRate}
}

// OpenParams describes a new account.
type OpenParams struct {
	OwnerUserID    string
	Variant        model.Variant
	InitialDeposit decimal.Decimal
	InterestRate   *decimal.Decimal // savings only; nil uses the default rate
}

// New validates p and builds the account without storing it.
func (s *Service) New(p OpenParams) (model.Account, error) {
	if !p.Variant.Valid() {
		return model.Account{}, fmt.Errorf("%w: %q", model.ErrInvalidVariant, p.Variant)
	}
	if p.InitialDeposit.IsNegative() {
		return model.Account{}, fmt.Errorf("%w: initial deposit %s is negative", model.ErrInvalidAmount, p.InitialDeposit)
	}
	if !model.HasCentPrecision(p.InitialDeposit) {
		return model.Account{}, fmt.Errorf("%w: initial deposit %s has more than %d decimal places",
			model.ErrInvalidAmount, p.InitialDeposit, model.CentPlaces)
	}

	a := model.Account{
		Number:      id.NewAccountNumber(p.Variant.Prefix()),
		Variant:     p.Variant,
		OwnerUserID: p.OwnerUserID,
		Balance:     p.InitialDeposit,
	}
	if p.Variant == model.VariantSavings {
		a.InterestRate = s.defaultRate
		if p.InterestRate != nil {
			a.InterestRate = *p.InterestRate
		}
		if a.InterestRate.IsNegative() {
			return model.Account{}, fmt.Errorf("%w: %s is negative", model.ErrInvalidRate, a.InterestRate)
		}
	}
	return a, nil
}

// Open stores a new account for an existing owner.
func (s *Service) Open(ctx context.Context, tx store.Tx, p OpenParams) (model.Account, error) {
	a, err := s.New(p)
	if err != nil {
		return model.Account{}, err
	}
	if _, err := tx.UserByID(ctx, p.OwnerUserID, false); err != nil {
		return model.Account{}, err
	}
	if err := tx.InsertAccount(ctx, a); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

// Deposit credits the owner's account and returns it with the new balance.
func (s *Service) Deposit(ctx context.Context, tx store.Tx, ownerUserID string, variant model.Variant, amount decimal.Decimal) (model.Account, error) {
	return s.mutate(ctx, tx, ownerUserID, variant, func(a *model.Account) error {
		_, err := a.Credit(amount)
		return err
	})
}

// Withdraw debits the owner's account. It fails with
// model.ErrInsufficientFunds when amount exceeds the balance.
func (s *Service) Withdraw(ctx context.Context, tx store.Tx, ownerUserID string, variant model.Variant, amount decimal.Decimal) (model.Account, error) {
	return s.mutate(ctx, tx, ownerUserID, variant, func(a *model.Account) error {
		_, err := a.Debit(amount)
		return err
	})
}

// ApplyInterest credits months of interest to the owner's savings account
// and returns the account and the amount credited.
func (s *Service) ApplyInterest(ctx context.Context, tx store.Tx, ownerUserID string, months int) (model.Account, decimal.Decimal, error) {
	var interest decimal.Decimal
	a, err := s.mutate(ctx, tx, ownerUserID, model.VariantSavings, func(a *model.Account) error {
		interest = a.CalculateInterest(months)
		if !interest.IsPositive() {
			return fmt.Errorf("%w: %d months on %s", model.ErrNoInterestDue, months, model.FormatAmount(a.Balance))
		}
		_, err := a.Credit(interest)
		return err
	})
	return a, interest, err
}

// mutate locks the account, applies fn to it and writes the new balance.
// Validation happens before anything is written.
func (s *Service) mutate(ctx context.Context, tx store.Tx, ownerUserID string, variant model.Variant, fn func(*model.Account) error) (model.Account, error) {
	if !variant.Valid() {
		return model.Account{}, fmt.Errorf("%w: %q", model.ErrInvalidVariant, variant)
	}
	a, err := tx.AccountByOwner(ctx, ownerUserID, variant, true)
	if err != nil {
		return model.Account{}, err
	}
	if err := fn(&a); err != nil {
		return model.Account{}, err
	}
	if err := tx.SetBalance(ctx, a.Variant, a.Number, a.Balance); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

// LookupByOwner returns the owner's account of the given variant, if any.
func (s *Service) LookupByOwner(ctx context.Context, ownerUserID string, variant model.Variant) (model.Account, bool, error) {
	var a model.Account
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		a, err = tx.AccountByOwner(ctx, ownerUserID, variant, false)
		return err
	})
	if errors.Is(err, model.ErrAccountNotFound) {
		return model.Account{}, false, nil
	}
	if err != nil {
		return model.Account{}, false, fmt.Errorf("looking up %s account: %w", variant, err)
	}
	return a, true, nil
}

// RefreshBalance re-reads the stored balance of an account.
func (s *Service) RefreshBalance(ctx context.Context, a model.Account) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.store.View(ctx, func(tx store.Tx) error {
		fresh, err := tx.AccountByNumber(ctx, a.Variant, a.Number)
		bal = fresh.Balance
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("refreshing balance of %s: %w", a.Number, err)
	}
	return bal, nil
}
