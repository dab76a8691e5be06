package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// The transfer engine's failure modes form a closed set of typed errors.
// Each carries structured fields so handlers can render messages at the
// boundary instead of the engine baking strings in.

// ErrVersionConflict is returned by stores when a conditional write loses to
// a concurrent writer. The engine translates exhausted conflicts into
// ConcurrencyConflictError; callers outside the engine never see it.
var ErrVersionConflict = errors.New("account version conflict")

// ValidationError rejects malformed input before any record is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// AccountNotFoundError names the account number that could not be resolved.
type AccountNotFoundError struct {
	AccountNumber string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.AccountNumber)
}

// DuplicateTransactionError rejects re-creation under a known transaction id.
type DuplicateTransactionError struct {
	TransactionID string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("transaction %s already exists", e.TransactionID)
}

// InsufficientFundsError is a business rejection, never retried.
type InsufficientFundsError struct {
	AccountNumber string
	Requested     decimal.Decimal
	Available     decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on %s. Requested: %s, Available: %s",
		e.AccountNumber, e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

// ConcurrencyConflictError means the bounded retry budget was spent losing
// version checks to concurrent writers.
type ConcurrencyConflictError struct {
	TransactionID string
	Attempts      int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("transaction %s aborted after %d conflicting attempts", e.TransactionID, e.Attempts)
}

// StoreError wraps an infrastructure failure from the persistence layer.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
