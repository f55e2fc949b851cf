package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a transaction record.
type Kind string

const (
	KindInitialDeposit Kind = "Initial Deposit"
	KindDeposit        Kind = "Deposit"
	KindWithdrawal     Kind = "Withdrawal"
	KindInterestCredit Kind = "Interest Credit"
)

// ParseKind maps a stored kind label back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindInitialDeposit, KindDeposit, KindWithdrawal, KindInterestCredit:
		return k, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", s)
}

// IsCredit reports whether the kind moves money into an account.
func (k Kind) IsCredit() bool {
	return k == KindInitialDeposit || k == KindDeposit || k == KindInterestCredit
}

// TransactionRecord is one immutable entry in the transaction log.
// Withdrawals set FromAccount only; every other kind sets ToAccount only.
type TransactionRecord struct {
	ID          string
	Amount      decimal.Decimal
	Kind        Kind
	OccurredAt  time.Time
	FromAccount string
	ToAccount   string
	OwnerUserID string
	Seq         int64 // insertion order, assigned by the store
}

// Account returns whichever account reference the record carries.
func (r TransactionRecord) Account() string {
	if r.FromAccount != "" {
		return r.FromAccount
	}
	return r.ToAccount
}

// SignedAmount returns the balance delta the record represents.
func (r TransactionRecord) SignedAmount() decimal.Decimal {
	if r.Kind == KindWithdrawal {
		return r.Amount.Neg()
	}
	return r.Amount
}
