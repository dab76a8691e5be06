package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
)

// Engine executes fund transfers: it owns the idempotency guard, the bounded
// optimistic retry loop and the transaction state machine. It holds plain
// store handles, takes requests as values and returns results or typed
// errors; there is no ambient state.
type Engine struct {
	store Store
	cache BalanceCache
	retry RetryPolicy
	now   func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCache attaches a balance cache. Without it the engine uses NoopCache.
func WithCache(c BalanceCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithRetryPolicy overrides the conflict retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		cache: NoopCache{},
		retry: DefaultRetryPolicy(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreatePendingInput is a transfer creation request. Amount is a decimal
// string; TransactionID is the optional client-supplied idempotency key.
type CreatePendingInput struct {
	FromAccountNumber string
	ToAccountNumber   string
	Amount            string
	TransactionID     string
}

// CreatePending validates the request and persists a PENDING transaction.
// No balance is touched here. A reused transaction id is always rejected
// with DuplicateTransactionError, whatever state the earlier record is in:
// creation is deliberately non-idempotent so a client can never silently
// piggyback on an old attempt.
func (e *Engine) CreatePending(ctx context.Context, in CreatePendingInput) (*domain.Transaction, error) {
	amount, err := domain.ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	if in.FromAccountNumber == in.ToAccountNumber {
		return nil, &domain.ValidationError{
			Field:  "to_account_number",
			Reason: "cannot transfer to the same account",
		}
	}

	if in.TransactionID != "" {
		existing, err := e.store.TransactionByID(ctx, in.TransactionID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, &domain.DuplicateTransactionError{TransactionID: in.TransactionID}
		}
	}

	accounts, err := e.store.AccountsByNumber(ctx, in.FromAccountNumber, in.ToAccountNumber)
	if err != nil {
		return nil, err
	}
	from, ok := accounts[in.FromAccountNumber]
	if !ok {
		return nil, &domain.AccountNotFoundError{AccountNumber: in.FromAccountNumber}
	}
	to, ok := accounts[in.ToAccountNumber]
	if !ok {
		return nil, &domain.AccountNotFoundError{AccountNumber: in.ToAccountNumber}
	}

	transactionID := in.TransactionID
	if transactionID == "" {
		transactionID = uuid.NewString()
	}

	txn := &domain.Transaction{
		ID:                uuid.New(),
		TransactionID:     transactionID,
		FromAccountID:     from.ID,
		ToAccountID:       to.ID,
		FromAccountNumber: from.AccountNumber,
		ToAccountNumber:   to.AccountNumber,
		Amount:            amount,
		Status:            domain.StatusPending,
		CreatedAt:         e.now().UTC(),
	}

	if err := e.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	slog.Info("transfer created",
		"transaction_id", txn.TransactionID,
		"from", txn.FromAccountNumber,
		"to", txn.ToAccountNumber,
		"amount", amount.StringFixed(2),
	)
	return txn, nil
}

// Result is the outcome of one Execute call: the terminal transaction plus
// the two account balances as of that outcome.
type Result struct {
	Transaction domain.Transaction
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// Execute drives the pending transaction to a terminal state and returns it.
//
// Each attempt runs inside one atomic unit of work: the transaction and both
// accounts are re-read (capturing fresh versions), the debit and credit are
// computed at fixed 2-decimal precision, and both account writes plus the
// COMPLETED transition commit together, each conditioned on the captured
// version. A lost version check aborts the unit and the attempt is retried
// under the engine's RetryPolicy; every other failure is terminal on the
// spot.
//
// Executing an already-terminal transaction returns the stored terminal
// record unchanged, with zero balance effect. That makes Execute safe to
// invoke from at-least-once delivery (queue workers, client retries). Failed
// transaction ids stay failed forever; retrying a failed transfer means
// creating a new transaction.
//
// An id with no stored record fails with ValidationError: there is no pending
// transaction to drive, so the request itself is malformed rather than a
// lookup miss.
func (e *Engine) Execute(ctx context.Context, transactionID string) (*Result, error) {
	for attempt := 0; ; attempt++ {
		res, committed, err := e.attempt(ctx, transactionID)
		if err == nil {
			if committed {
				e.invalidateBalances(ctx, res.Transaction.FromAccountNumber, res.Transaction.ToAccountNumber)
			}
			return res, nil
		}

		if errors.Is(err, domain.ErrVersionConflict) {
			if attempt+1 >= e.retry.MaxAttempts {
				conflict := &domain.ConcurrencyConflictError{
					TransactionID: transactionID,
					Attempts:      e.retry.MaxAttempts,
				}
				e.failTransaction(ctx, transactionID, conflict.Error())
				slog.Warn("transfer aborted on contention",
					"transaction_id", transactionID,
					"attempts", e.retry.MaxAttempts,
				)
				return nil, conflict
			}
			delay := e.retry.Backoff(attempt)
			slog.Info("transfer conflict, retrying",
				"transaction_id", transactionID,
				"attempt", attempt+1,
				"backoff", delay,
			)
			// The sleep holds no locks: the unit above already aborted.
			time.Sleep(delay)
			continue
		}

		// Business rejections and infrastructure failures are never retried.
		// Once a pending record exists it is marked failed with the captured
		// detail; balances were never committed, so there is nothing to undo.
		var ife *domain.InsufficientFundsError
		var anf *domain.AccountNotFoundError
		switch {
		case errors.As(err, &ife), errors.As(err, &anf):
			e.failTransaction(ctx, transactionID, err.Error())
		default:
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				e.failTransaction(ctx, transactionID, err.Error())
			}
		}
		return nil, err
	}
}

// attempt runs one iteration of the execution loop. committed reports
// whether this attempt transitioned the transaction (as opposed to finding
// it already terminal).
func (e *Engine) attempt(ctx context.Context, transactionID string) (res *Result, committed bool, err error) {
	// Read outside any unit purely to learn the account pair for contention
	// hinting and to short-circuit terminal records cheaply.
	txn, err := e.store.TransactionByID(ctx, transactionID)
	if err != nil {
		return nil, false, err
	}
	if txn == nil {
		return nil, false, &domain.ValidationError{Field: "transaction_id", Reason: "unknown transaction"}
	}

	atomicErr := e.store.Atomic(ctx, txn.FromAccountNumber, txn.ToAccountNumber, func(tx AtomicStore) error {
		current, err := tx.TransactionByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if current == nil {
			return &domain.StoreError{Op: "execute", Err: errors.New("transaction vanished mid-flight")}
		}

		// Another execution already finished it: return its terminal result
		// untouched. This is what makes repeat Execute calls exactly-once in
		// effect.
		if current.Status.Terminal() {
			from, to, err := e.readPair(ctx, tx, current)
			if err != nil {
				return err
			}
			res = &Result{Transaction: *current, FromBalance: from.Balance, ToBalance: to.Balance}
			return nil
		}

		from, to, err := e.readPair(ctx, tx, current)
		if err != nil {
			return err
		}

		newFrom, err := domain.Debit(from, current.Amount)
		if err != nil {
			// Business rejection: abort this unit; the caller commits the
			// FAILED record separately.
			return err
		}
		newTo := domain.Credit(to, current.Amount)

		if err := tx.UpdateAccountBalance(ctx, from.ID, newFrom, from.Version); err != nil {
			return err
		}
		if err := tx.UpdateAccountBalance(ctx, to.ID, newTo, to.Version); err != nil {
			return err
		}

		completedAt := e.now().UTC()
		if err := tx.CompleteTransaction(ctx, current.TransactionID, completedAt); err != nil {
			return err
		}

		done := *current
		done.Status = domain.StatusCompleted
		done.CompletedAt = &completedAt
		res = &Result{Transaction: done, FromBalance: newFrom, ToBalance: newTo}
		committed = true
		return nil
	})
	if atomicErr != nil {
		return nil, false, atomicErr
	}
	return res, committed, nil
}

// readPair loads both accounts of the transfer inside the current unit.
func (e *Engine) readPair(ctx context.Context, tx AtomicStore, txn *domain.Transaction) (*domain.Account, *domain.Account, error) {
	from, err := tx.AccountByID(ctx, txn.FromAccountID)
	if err != nil {
		return nil, nil, err
	}
	if from == nil {
		return nil, nil, &domain.AccountNotFoundError{AccountNumber: txn.FromAccountNumber}
	}
	to, err := tx.AccountByID(ctx, txn.ToAccountID)
	if err != nil {
		return nil, nil, err
	}
	if to == nil {
		return nil, nil, &domain.AccountNotFoundError{AccountNumber: txn.ToAccountNumber}
	}
	return from, to, nil
}

// failTransaction commits the FAILED record for a still-pending transaction.
// It is best-effort on top of an already-decided failure: if the store is
// down we still surface the original error to the caller.
func (e *Engine) failTransaction(ctx context.Context, transactionID, message string) {
	if err := e.store.MarkTransactionFailed(ctx, transactionID, message); err != nil {
		slog.Error("could not record transfer failure",
			"transaction_id", transactionID,
			"error", err,
		)
	}
}

// invalidateBalances drops both cached balances after a committed transfer.
// Failures are logged and swallowed: the cache is a derived view and never
// undoes a commit.
func (e *Engine) invalidateBalances(ctx context.Context, numbers ...string) {
	if err := e.cache.Invalidate(ctx, numbers...); err != nil {
		slog.Warn("balance cache invalidation failed", "accounts", numbers, "error", err)
	}
}
