package journal

import (
	"fmt"

	"github.com/ledgerwell/ledgerwell/internal/id"
	"github.com/ledgerwell/ledgerwell/internal/model"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	RecordID    string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.RecordID, e.Description)
}

// ValidateRecord enforces 5 invariants on a single transaction record.
func ValidateRecord(rec model.TransactionRecord) []ValidationError {
	var errs []ValidationError
	add := func(n int, format string, args ...any) {
		errs = append(errs, ValidationError{Invariant: n, RecordID: rec.ID, Description: fmt.Sprintf(format, args...)})
	}

	// Invariant 1: Well-formed ID.
	if prefix, _, err := id.Parse(rec.ID); err != nil || prefix != id.TransactionPrefix {
		add(1, "invalid transaction ID %q", rec.ID)
	}

	// Invariant 2: Positive amount in whole cents.
	if !rec.Amount.IsPositive() {
		add(2, "amount %s must be greater than zero", rec.Amount)
	} else if !model.HasCentPrecision(rec.Amount) {
		add(2, "amount %s has more than %d decimal places", rec.Amount, model.CentPlaces)
	}

	// Invariant 3: Exactly one account reference, on the side the kind implies.
	switch {
	case rec.FromAccount != "" && rec.ToAccount != "":
		add(3, "record references both %s and %s", rec.FromAccount, rec.ToAccount)
	case rec.FromAccount == "" && rec.ToAccount == "":
		add(3, "record references no account")
	case rec.Kind == model.KindWithdrawal && rec.FromAccount == "":
		add(3, "withdrawal must reference the source account")
	case rec.Kind.IsCredit() && rec.ToAccount == "":
		add(3, "%s must reference the destination account", rec.Kind)
	}

	// Invariant 4: Known kind.
	if _, err := model.ParseKind(string(rec.Kind)); err != nil {
		add(4, "%v", err)
	}

	// Invariant 5: Owned and timestamped.
	if rec.OwnerUserID == "" {
		add(5, "record has no owner")
	}
	if rec.OccurredAt.IsZero() {
		add(5, "record has no timestamp")
	}

	return errs
}
