package engine

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
)

const (
	maxPageLimit     = 100
	defaultPageLimit = 20
)

// TransactionPage is one page of an account's transfer history.
type TransactionPage struct {
	Items  []domain.Transaction `json:"items"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// GetByID fetches a transaction by id. Returns (nil, nil) when absent.
func (e *Engine) GetByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return e.store.TransactionByID(ctx, transactionID)
}

// ListByAccount returns the account's outgoing and incoming transfers merged,
// deduplicated, newest first. Out-of-range limits are clamped to [1,100]
// rather than rejected, so a limit of 200 quietly becomes 100; the gateway
// passes the raw value through. A missing account fails AccountNotFound; an
// unknown status filter fails ValidationError.
func (e *Engine) ListByAccount(ctx context.Context, accountNumber string, limit, offset int, statusFilter string) (*TransactionPage, error) {
	var status *domain.Status
	if statusFilter != "" {
		parsed, ok := domain.ParseStatus(statusFilter)
		if !ok {
			return nil, &domain.ValidationError{Field: "status", Reason: "must be one of PENDING, COMPLETED, FAILED"}
		}
		status = &parsed
	}

	if offset < 0 {
		return nil, &domain.ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	account, err := e.store.AccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, &domain.AccountNotFoundError{AccountNumber: accountNumber}
	}

	items, total, err := e.store.ListByAccount(ctx, account.ID, limit, offset, status)
	if err != nil {
		return nil, err
	}
	return &TransactionPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// GetBalance reads an account balance through the cache. The cache is
// best-effort: a stale entry is possible between a commit and its
// invalidation, and correctness never depends on it.
func (e *Engine) GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	if balance, ok := e.cache.Get(ctx, accountNumber); ok {
		return balance, nil
	}

	account, err := e.store.AccountByNumber(ctx, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	if account == nil {
		return decimal.Zero, &domain.AccountNotFoundError{AccountNumber: accountNumber}
	}

	if err := e.cache.Set(ctx, accountNumber, account.Balance); err != nil {
		slog.Warn("balance cache set failed", "account", accountNumber, "error", err)
	}
	return account.Balance, nil
}

// CreateAccount persists a new account with an opening balance. Fixture
// loaders and the accounts endpoint use it; the engine itself never mutates
// balances outside Execute.
func (e *Engine) CreateAccount(ctx context.Context, acc *domain.Account) error {
	if acc.AccountNumber == "" {
		return &domain.ValidationError{Field: "account_number", Reason: "must not be empty"}
	}
	if acc.Balance.IsNegative() {
		return &domain.ValidationError{Field: "balance", Reason: "opening balance cannot be negative"}
	}
	if acc.Balance.Exponent() < -2 {
		return &domain.ValidationError{Field: "balance", Reason: "at most 2 decimal places allowed"}
	}
	return e.store.CreateAccount(ctx, acc)
}
