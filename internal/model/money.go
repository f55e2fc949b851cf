package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CentPlaces is the number of decimal places money amounts carry.
const CentPlaces = 2

var hundred = decimal.NewFromInt(100)

// HasCentPrecision reports whether d has no more than two decimal places.
func HasCentPrecision(d decimal.Decimal) bool {
	scaled := d.Mul(hundred)
	return scaled.Equal(scaled.Truncate(0))
}

// ValidateAmount checks that a transaction amount is positive and whole cents.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, amount.String())
	}
	if !HasCentPrecision(amount) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount.String(), CentPlaces)
	}
	return nil
}

// ParseAmount parses a user-supplied amount such as "12.50".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return d, nil
}

// FormatAmount renders an amount with exactly two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(CentPlaces)
}
