package model

import "errors"

// Error classes. Every domain error below wraps exactly one of these, so
// callers can branch with errors.Is(err, model.ErrValidation) and friends.
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAuth        = errors.New("authentication error")
	ErrPersistence = errors.New("persistence error")
	// ErrConsistency marks a broken ledger invariant: a balance change without
	// its transaction record or the reverse. It is never expected at runtime.
	ErrConsistency = errors.New("consistency violation")
)

var (
	ErrInvalidAmount     = classed(ErrValidation, "invalid amount")
	ErrInvalidRate       = classed(ErrValidation, "invalid interest rate")
	ErrInvalidVariant    = classed(ErrValidation, "invalid account variant")
	ErrInvalidDateRange  = classed(ErrValidation, "invalid date range")
	ErrBlankField        = classed(ErrValidation, "required field is blank")
	ErrInsufficientFunds = classed(ErrValidation, "insufficient funds")
	ErrNoInterestDue     = classed(ErrValidation, "no interest due")

	ErrUserNotFound    = classed(ErrNotFound, "user not found")
	ErrAccountNotFound = classed(ErrNotFound, "account not found")

	ErrUsernameTaken = classed(ErrConflict, "username already taken")
	ErrAccountExists = classed(ErrConflict, "account already exists")

	ErrInvalidCredentials = classed(ErrAuth, "invalid credentials")
)

type classedError struct {
	class error
	msg   string
}

func classed(class error, msg string) error {
	return &classedError{class: class, msg: msg}
}

func (e *classedError) Error() string { return e.msg }

func (e *classedError) Unwrap() error { return e.class }

// ClassOf names the error class of err, or "internal" when err carries none.
func ClassOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrConsistency):
		return "consistency"
	default:
		return "internal"
	}
}
