package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
)

// Store is the persistence surface the engine drives. Lookups return
// (nil, nil) when the record is absent; infrastructure failures come back as
// *domain.StoreError.
type Store interface {
	// CreateAccount persists a new account row.
	CreateAccount(ctx context.Context, acc *domain.Account) error

	// AccountByNumber resolves one account by its unique number.
	AccountByNumber(ctx context.Context, number string) (*domain.Account, error)

	// AccountsByNumber resolves several accounts in one batched lookup,
	// keyed by account number. Missing numbers are simply absent from the map.
	AccountsByNumber(ctx context.Context, numbers ...string) (map[string]*domain.Account, error)

	// CreateTransaction persists a new pending transaction. A reused
	// transaction id yields *domain.DuplicateTransactionError even when two
	// creators race, backed by a uniqueness constraint.
	CreateTransaction(ctx context.Context, txn *domain.Transaction) error

	// TransactionByID fetches a transaction with its account numbers
	// denormalized on.
	TransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// ListByAccount returns the account's outgoing and incoming transactions
	// merged, deduplicated by id, newest first, plus the total count before
	// pagination.
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int, status *domain.Status) ([]domain.Transaction, int64, error)

	// MarkTransactionFailed transitions a pending transaction to FAILED with
	// the given detail, committing immediately. Already-terminal records are
	// left untouched.
	MarkTransactionFailed(ctx context.Context, transactionID, message string) error

	// Atomic runs fn inside one atomic unit of work. fn returning an error
	// aborts the unit with nothing committed. The account pair is advisory
	// only: a store may use it to reduce contention (e.g. a sorted-pair
	// advisory lock) but correctness must hold without it.
	Atomic(ctx context.Context, fromNumber, toNumber string, fn func(AtomicStore) error) error
}

// AtomicStore is the view of the store available inside one atomic unit.
type AtomicStore interface {
	TransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	AccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// UpdateAccountBalance writes the new balance and bumps the version,
	// conditioned on the version the caller captured when it read the
	// account. A concurrent writer having moved the version first yields
	// domain.ErrVersionConflict.
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error

	// CompleteTransaction transitions PENDING -> COMPLETED, setting
	// completed_at, conditioned on the record still being pending. Losing
	// that condition yields domain.ErrVersionConflict.
	CompleteTransaction(ctx context.Context, transactionID string, completedAt time.Time) error
}

// BalanceCache is a best-effort derived view of account balances. The engine
// only ever invalidates it after a committed transfer and the query side only
// reads through it; no correctness decision consults it.
type BalanceCache interface {
	Get(ctx context.Context, accountNumber string) (decimal.Decimal, bool)
	Set(ctx context.Context, accountNumber string, balance decimal.Decimal) error
	Invalidate(ctx context.Context, accountNumbers ...string) error
}

// NoopCache satisfies BalanceCache with no storage at all.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (decimal.Decimal, bool) { return decimal.Zero, false }
func (NoopCache) Set(context.Context, string, decimal.Decimal) error { return nil }
func (NoopCache) Invalidate(context.Context, ...string) error { return nil }
