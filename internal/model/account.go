package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerwell/ledgerwell/internal/id"
)

// Variant is the kind of a bank account.
type Variant string

const (
	VariantChecking Variant = "checking"
	VariantSavings  Variant = "savings"
)

// Variants lists every supported variant in display order.
var Variants = []Variant{VariantChecking, VariantSavings}

// ParseVariant accepts "checking" or "savings" in any case.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVariant, s)
	}
	return v, nil
}

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == VariantChecking || v == VariantSavings
}

// Prefix returns the account-number prefix for the variant.
func (v Variant) Prefix() string {
	if v == VariantSavings {
		return id.SavingsPrefix
	}
	return id.CheckingPrefix
}

// Account is a checking or savings account. InterestRate is an annual
// percentage (2.5 means 2.5%) and is zero for checking accounts.
type Account struct {
	Number       string
	Variant      Variant
	OwnerUserID  string
	Balance      decimal.Decimal
	InterestRate decimal.Decimal
}

// Credit adds amount to the balance and returns the new balance.
func (a *Account) Credit(amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return a.Balance, err
	}
	a.Balance = a.Balance.Add(amount)
	return a.Balance, nil
}

// Debit removes amount from the balance and returns the new balance.
// The balance never goes below zero.
func (a *Account) Debit(amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return a.Balance, err
	}
	if amount.GreaterThan(a.Balance) {
		return a.Balance, fmt.Errorf("%w: balance %s, requested %s",
			ErrInsufficientFunds, FormatAmount(a.Balance), FormatAmount(amount))
	}
	a.Balance = a.Balance.Sub(amount)
	return a.Balance, nil
}

var twelveHundred = decimal.NewFromInt(1200)

// CalculateInterest returns balance * rate * months / 1200, rounded half-even
// to whole cents. It is zero for non-positive months and for checking accounts.
func (a Account) CalculateInterest(months int) decimal.Decimal {
	if months <= 0 || a.Variant != VariantSavings {
		return decimal.Zero
	}
	return a.Balance.
		Mul(a.InterestRate).
		Mul(decimal.NewFromInt(int64(months))).
		Div(twelveHundred).
		RoundBank(CentPlaces)
}
