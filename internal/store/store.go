package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerwell/ledgerwell/internal/model"
)

// Store opens atomic units of work against the ledger's persisted state.
// Services only touch storage through the Tx handed to fn.
type Store interface {
	// Update runs fn inside one atomic unit. If fn returns an error, or the
	// commit fails, none of the writes made through the Tx are applied.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn against committed state without taking exclusive locks.
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Tx is the set of storage operations available inside a unit of work.
type Tx interface {
	// InsertUser fails with model.ErrUsernameTaken on a duplicate username.
	InsertUser(ctx context.Context, u model.User) error
	// UserByID returns the user. With lock set, concurrent units locking the
	// same user block until this unit ends.
	UserByID(ctx context.Context, userID string, lock bool) (model.User, error)
	UserByUsername(ctx context.Context, username string) (model.User, error)
	UpdateUser(ctx context.Context, u model.User) error

	// InsertAccount fails with model.ErrAccountExists when the owner already
	// holds an account of the same variant.
	InsertAccount(ctx context.Context, a model.Account) error
	// AccountByOwner returns the owner's account of the given variant. With
	// lock set, concurrent units locking the same account block until this
	// unit ends.
	AccountByOwner(ctx context.Context, ownerUserID string, variant model.Variant, lock bool) (model.Account, error)
	AccountByNumber(ctx context.Context, variant model.Variant, number string) (model.Account, error)
	SetBalance(ctx context.Context, variant model.Variant, number string, balance decimal.Decimal) error

	// InsertTransaction stores rec and returns it with Seq assigned.
	InsertTransaction(ctx context.Context, rec model.TransactionRecord) (model.TransactionRecord, error)
	// Transactions lists an owner's records newest first, later insertions
	// first among equal timestamps.
	Transactions(ctx context.Context, q TxQuery) ([]model.TransactionRecord, error)
}

// TxQuery filters a transaction listing. Zero From/To leave that side open;
// both bounds are inclusive calendar dates (UTC). Limit <= 0 means no cap.
type TxQuery struct {
	OwnerUserID string
	From        time.Time
	To          time.Time
	Limit       int
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Matches reports whether rec falls inside the query's owner and date range.
func (q TxQuery) Matches(rec model.TransactionRecord) bool {
	if rec.OwnerUserID != q.OwnerUserID {
		return false
	}
	day := Day(rec.OccurredAt)
	if !q.From.IsZero() && day.Before(Day(q.From)) {
		return false
	}
	if !q.To.IsZero() && day.After(Day(q.To)) {
		return false
	}
	return true
}

// Precision is the timestamp resolution every driver stores.
const Precision = time.Microsecond
