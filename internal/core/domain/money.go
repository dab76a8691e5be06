package domain

import (
	"github.com/shopspring/decimal"
)

// Money values are fixed-point decimals with at most 2 fractional digits.
// All arithmetic on balances goes through ParseAmount/Debit/Credit so no
// binary floating point ever touches the money path.

// ParseAmount validates and parses a decimal-string transfer amount.
// The amount must be a positive number with at most 2 fractional digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "not a valid decimal number"}
	}
	return CheckAmount(d)
}

// CheckAmount enforces the amount invariants on an already-parsed decimal.
func CheckAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if !d.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if d.Exponent() < -2 {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "at most 2 decimal places allowed"}
	}
	return d, nil
}

// Debit computes balance - amount at 2-decimal precision. A negative result
// returns InsufficientFundsError; the caller must feed the returned value
// into the same conditional write that this check guards, never a separate
// one.
func Debit(acc *Account, amount decimal.Decimal) (decimal.Decimal, error) {
	next := acc.Balance.Sub(amount)
	if next.IsNegative() {
		return decimal.Zero, &InsufficientFundsError{
			AccountNumber: acc.AccountNumber,
			Requested:     amount,
			Available:     acc.Balance,
		}
	}
	return next, nil
}

// Credit computes balance + amount at 2-decimal precision.
func Credit(acc *Account, amount decimal.Decimal) decimal.Decimal {
	return acc.Balance.Add(amount)
}
