package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Identifier prefixes.
const (
	UserPrefix        = "USER"
	TransactionPrefix = "TXN"
	CheckingPrefix    = "CHK"
	SavingsPrefix     = "SAV"
)

// NewUserID returns a user ID like "USER-1b4e28ba-2fa1-11d2-883f-0016d3cca427".
func NewUserID() string {
	return Format(UserPrefix, uuid.New())
}

// NewTransactionID returns a transaction ID like "TXN-<uuid>".
func NewTransactionID() string {
	return Format(TransactionPrefix, uuid.New())
}

// NewAccountNumber returns an account number carrying the variant prefix,
// e.g. "CHK-<uuid>" or "SAV-<uuid>".
func NewAccountNumber(prefix string) string {
	return Format(prefix, uuid.New())
}

// Format joins a prefix and a UUID.
func Format(prefix string, u uuid.UUID) string {
	return prefix + "-" + u.String()
}

// Parse splits "CHK-<uuid>" into its prefix and UUID.
func Parse(s string) (prefix string, u uuid.UUID, err error) {
	prefix, rest, ok := strings.Cut(s, "-")
	if !ok || prefix == "" {
		return "", uuid.Nil, fmt.Errorf("invalid identifier format: %q", s)
	}
	u, err = uuid.Parse(rest)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid uuid in identifier %q: %w", s, err)
	}
	return prefix, u, nil
}

// HasPrefix reports whether s is a well-formed identifier with the given prefix.
func HasPrefix(s, prefix string) bool {
	p, _, err := Parse(s)
	return err == nil && p == prefix
}
