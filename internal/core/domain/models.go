package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a Transaction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	// StatusReversed is reserved for a future reversal workflow. Nothing in
	// the engine can reach it today.
	StatusReversed Status = "REVERSED"
)

// ParseStatus maps a client-facing status filter onto a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusCompleted, StatusFailed:
		return Status(s), true
	}
	return "", false
}

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo enforces the one-way state machine:
// PENDING -> COMPLETED | FAILED; terminal states are absorbing.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	return next == StatusCompleted || next == StatusFailed
}

// Account represents a customer's balance-holding account.
// Balance is a fixed-point decimal with 2 fractional digits and is never
// negative. Version increments on every successful mutation and is what the
// engine's conditional writes check against.
type Account struct {
	ID            uuid.UUID       `json:"id"`
	AccountNumber string          `json:"account_number"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Balance       decimal.Decimal `json:"balance"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Transaction represents one transfer attempt and its outcome. It references
// its two accounts by id; the account numbers are denormalized onto the
// struct by the store for rendering.
type Transaction struct {
	ID                uuid.UUID       `json:"-"`
	TransactionID     string          `json:"transaction_id"`
	FromAccountID     uuid.UUID       `json:"-"`
	ToAccountID       uuid.UUID       `json:"-"`
	FromAccountNumber string          `json:"from_account_number"`
	ToAccountNumber   string          `json:"to_account_number"`
	Amount            decimal.Decimal `json:"amount"`
	Status            Status          `json:"status"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}
