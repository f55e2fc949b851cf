package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerwell/ledgerwell/internal/accounts"
	"github.com/ledgerwell/ledgerwell/internal/journal"
	"github.com/ledgerwell/ledgerwell/internal/logging"
	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
)

// Service is the entry point for money movement and history queries. Every
// balance change and its transaction record commit together or not at all.
type Service struct {
	store    store.Store
	accounts *accounts.Service
	journal  *journal.Service
	logger   *slog.Logger
}

// NewService wires a ledger over s. defaultRate is the annual percentage
// given to savings accounts opened without an explicit rate.
func NewService(s store.Store, defaultRate decimal.Decimal, logger *slog.Logger) *Service {
	return &Service{
		store:    s,
		accounts: accounts.NewService(s, defaultRate),
		journal:  journal.NewService(s),
		logger:   logging.OrDiscard(logger),
	}
}

// Receipt is the outcome of a committed balance change.
type Receipt struct {
	Account model.Account
	Record  model.TransactionRecord
}

// Summary holds an owner's balances. A nil field means no such account.
type Summary struct {
	Checking *decimal.Decimal
	Savings  *decimal.Decimal
}

// OpenAccount creates an account of the given variant for the owner. A
// positive initial deposit is logged as an Initial Deposit record in the
// same unit.
func (s *Service) OpenAccount(ctx context.Context, p accounts.OpenParams) (model.Account, error) {
	var a model.Account
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		a, err = s.accounts.Open(ctx, tx, p)
		if err != nil || !a.Balance.IsPositive() {
			return err
		}
		_, err = s.settle(ctx, tx, decimal.Zero, a, model.TransactionRecord{
			Amount:      a.Balance,
			Kind:        model.KindInitialDeposit,
			ToAccount:   a.Number,
			OwnerUserID: a.OwnerUserID,
		})
		return err
	})
	if err != nil {
		s.fail("open account", p.OwnerUserID, p.Variant, err)
		return model.Account{}, fmt.Errorf("opening %s account: %w", p.Variant, err)
	}
	s.logger.Info("account opened", "user_id", a.OwnerUserID, "account", a.Number, "variant", a.Variant,
		"balance", model.FormatAmount(a.Balance))
	return a, nil
}

// Deposit credits amount to the owner's account of the given variant.
func (s *Service) Deposit(ctx context.Context, ownerUserID string, variant model.Variant, amount decimal.Decimal) (Receipt, error) {
	r, err := s.move(ctx, ownerUserID, variant, model.KindDeposit, func(tx store.Tx) (model.Account, decimal.Decimal, error) {
		a, err := s.accounts.Deposit(ctx, tx, ownerUserID, variant, amount)
		return a, amount, err
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("deposit: %w", err)
	}
	return r, nil
}

// Withdraw debits amount from the owner's account of the given variant.
func (s *Service) Withdraw(ctx context.Context, ownerUserID string, variant model.Variant, amount decimal.Decimal) (Receipt, error) {
	r, err := s.move(ctx, ownerUserID, variant, model.KindWithdrawal, func(tx store.Tx) (model.Account, decimal.Decimal, error) {
		a, err := s.accounts.Withdraw(ctx, tx, ownerUserID, variant, amount)
		return a, amount, err
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("withdrawal: %w", err)
	}
	return r, nil
}

// ApplyInterest credits months of interest to the owner's savings account.
// It fails with model.ErrNoInterestDue when the computed interest is zero.
func (s *Service) ApplyInterest(ctx context.Context, ownerUserID string, months int) (Receipt, error) {
	r, err := s.move(ctx, ownerUserID, model.VariantSavings, model.KindInterestCredit, func(tx store.Tx) (model.Account, decimal.Decimal, error) {
		return s.accounts.ApplyInterest(ctx, tx, ownerUserID, months)
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("applying interest: %w", err)
	}
	return r, nil
}

// CalculateInterest previews the interest ApplyInterest would credit.
func (s *Service) CalculateInterest(ctx context.Context, ownerUserID string, months int) (decimal.Decimal, error) {
	a, ok, err := s.accounts.LookupByOwner(ctx, ownerUserID, model.VariantSavings)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no savings account for user %s", model.ErrAccountNotFound, ownerUserID)
	}
	return a.CalculateInterest(months), nil
}

// move runs one balance change and its record in a single unit.
func (s *Service) move(ctx context.Context, ownerUserID string, variant model.Variant, kind model.Kind,
	change func(store.Tx) (model.Account, decimal.Decimal, error)) (Receipt, error) {
	var r Receipt
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if !variant.Valid() {
			return fmt.Errorf("%w: %q", model.ErrInvalidVariant, variant)
		}
		before, err := tx.AccountByOwner(ctx, ownerUserID, variant, true)
		if err != nil {
			return err
		}
		after, amount, err := change(tx)
		if err != nil {
			return err
		}
		rec := model.TransactionRecord{Amount: amount, Kind: kind, OwnerUserID: ownerUserID}
		if kind == model.KindWithdrawal {
			rec.FromAccount = after.Number
		} else {
			rec.ToAccount = after.Number
		}
		r, err = s.settle(ctx, tx, before.Balance, after, rec)
		return err
	})
	if err != nil {
		s.fail(string(kind), ownerUserID, variant, err)
		return Receipt{}, err
	}
	s.logger.Info("balance changed", "user_id", ownerUserID, "account", r.Account.Number, "kind", kind,
		"amount", model.FormatAmount(r.Record.Amount), "balance", model.FormatAmount(r.Account.Balance),
		"transaction_id", r.Record.ID)
	return r, nil
}

// settle appends rec and checks that the account's new balance is exactly
// the old one moved by the record.
func (s *Service) settle(ctx context.Context, tx store.Tx, before decimal.Decimal, after model.Account, rec model.TransactionRecord) (Receipt, error) {
	stored, err := s.journal.Append(ctx, tx, rec)
	if err != nil {
		return Receipt{}, err
	}
	current, err := tx.AccountByNumber(ctx, after.Variant, after.Number)
	if err != nil {
		return Receipt{}, err
	}
	if want := before.Add(stored.SignedAmount()); !current.Balance.Equal(want) || stored.Account() != after.Number {
		s.logger.Error("ledger consistency violation", "account", after.Number, "transaction_id", stored.ID,
			"expected", model.FormatAmount(want), "actual", model.FormatAmount(current.Balance))
		return Receipt{}, fmt.Errorf("%w: %s balance %s, expected %s after %s",
			model.ErrConsistency, after.Number, model.FormatAmount(current.Balance), model.FormatAmount(want), stored.ID)
	}
	return Receipt{Account: current, Record: stored}, nil
}

func (s *Service) fail(op, ownerUserID string, variant model.Variant, err error) {
	class := model.ClassOf(err)
	attrs := []any{"op", op, "user_id", ownerUserID, "variant", variant, "class", class, "error", err}
	switch class {
	case "persistence", "consistency", "internal":
		s.logger.Error("ledger operation failed", attrs...)
	default:
		s.logger.Debug("ledger operation rejected", attrs...)
	}
}

// BalanceSummary returns the owner's checking and savings balances.
func (s *Service) BalanceSummary(ctx context.Context, ownerUserID string) (Summary, error) {
	accts, err := s.Accounts(ctx, ownerUserID)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, a := range accts {
		bal := a.Balance
		switch a.Variant {
		case model.VariantChecking:
			sum.Checking = &bal
		case model.VariantSavings:
			sum.Savings = &bal
		}
	}
	return sum, nil
}

// Accounts lists the owner's accounts, checking before savings.
func (s *Service) Accounts(ctx context.Context, ownerUserID string) ([]model.Account, error) {
	var out []model.Account
	for _, v := range model.Variants {
		a, ok, err := s.accounts.LookupByOwner(ctx, ownerUserID, v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// History returns every record of the owner, newest first.
func (s *Service) History(ctx context.Context, ownerUserID string) ([]model.TransactionRecord, error) {
	return s.journal.AllFor(ctx, ownerUserID)
}

// Recent returns at most limit of the owner's newest records.
func (s *Service) Recent(ctx context.Context, ownerUserID string, limit int) ([]model.TransactionRecord, error) {
	return s.journal.RecentFor(ctx, ownerUserID, limit)
}

// Search returns the owner's records dated start..end inclusive.
func (s *Service) Search(ctx context.Context, ownerUserID string, start, end time.Time) ([]model.TransactionRecord, error) {
	return s.journal.SearchFor(ctx, ownerUserID, start, end)
}
