package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/engine"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same row
// mapping serves plain reads and reads inside an atomic unit.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements engine.Store.
type Store struct {
	pool *pgxpool.Pool

	// advisoryLocks turns on a pg_advisory_xact_lock over the sorted account
	// pair inside each atomic unit. Pure contention reducer: the version
	// checks stay the sole correctness mechanism and everything works with
	// this off.
	advisoryLocks bool
}

var _ engine.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool, advisoryLocks bool) *Store {
	return &Store{pool: pool, advisoryLocks: advisoryLocks}
}

func storeErr(op string, err error) error {
	return &domain.StoreError{Op: op, Err: err}
}

func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) error {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	query := `
		INSERT INTO accounts (id, account_number, first_name, last_name, balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING version, created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		acc.ID, acc.AccountNumber, acc.FirstName, acc.LastName, acc.Balance.StringFixed(2),
	).Scan(&acc.Version, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &domain.ValidationError{Field: "account_number", Reason: "already exists"}
		}
		return storeErr("create account", err)
	}
	return nil
}

const accountColumns = `id, account_number, first_name, last_name, balance::text, version, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	var balance string
	err := row.Scan(&acc.ID, &acc.AccountNumber, &acc.FirstName, &acc.LastName,
		&balance, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	acc.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *Store) AccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("read account", err)
	}
	return acc, nil
}

func (s *Store) AccountsByNumber(ctx context.Context, numbers ...string) (map[string]*domain.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_number = ANY($1)`, numbers)
	if err != nil {
		return nil, storeErr("read accounts", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.Account, len(numbers))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, storeErr("read accounts", err)
		}
		out[acc.AccountNumber] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read accounts", err)
	}
	return out, nil
}

func accountByID(ctx context.Context, q querier, id uuid.UUID) (*domain.Account, error) {
	row := q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("read account", err)
	}
	return acc, nil
}

func (s *Store) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, transaction_id, from_account_id, to_account_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		txn.ID, txn.TransactionID, txn.FromAccountID, txn.ToAccountID,
		txn.Amount.StringFixed(2), string(txn.Status), txn.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &domain.DuplicateTransactionError{TransactionID: txn.TransactionID}
		}
		return storeErr("create transaction", err)
	}
	return nil
}

const transactionSelect = `
	SELECT t.id, t.transaction_id, t.from_account_id, t.to_account_id,
	       fa.account_number, ta.account_number,
	       t.amount::text, t.status, COALESCE(t.error_message, ''), t.created_at, t.completed_at
	FROM transactions t
	JOIN accounts fa ON fa.id = t.from_account_id
	JOIN accounts ta ON ta.id = t.to_account_id
`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var txn domain.Transaction
	var amount, status string
	err := row.Scan(&txn.ID, &txn.TransactionID, &txn.FromAccountID, &txn.ToAccountID,
		&txn.FromAccountNumber, &txn.ToAccountNumber,
		&amount, &status, &txn.ErrorMessage, &txn.CreatedAt, &txn.CompletedAt)
	if err != nil {
		return nil, err
	}
	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	txn.Status = domain.Status(status)
	return &txn, nil
}

func transactionByID(ctx context.Context, q querier, transactionID string) (*domain.Transaction, error) {
	row := q.QueryRow(ctx, transactionSelect+` WHERE t.transaction_id = $1`, transactionID)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("read transaction", err)
	}
	return txn, nil
}

func (s *Store) TransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return transactionByID(ctx, s.pool, transactionID)
}

func (s *Store) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int, status *domain.Status) ([]domain.Transaction, int64, error) {
	where := ` WHERE (t.from_account_id = $1 OR t.to_account_id = $1)`
	args := []any{accountID}
	if status != nil {
		where += ` AND t.status = $2`
		args = append(args, string(*status))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM transactions t` + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count transactions", err)
	}

	query := transactionSelect + where +
		` ORDER BY t.created_at DESC, t.transaction_id DESC` +
		` LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeErr("list transactions", err)
	}
	defer rows.Close()

	items := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, storeErr("list transactions", err)
		}
		items = append(items, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("list transactions", err)
	}
	return items, total, nil
}

func (s *Store) MarkTransactionFailed(ctx context.Context, transactionID, message string) error {
	// Conditional on PENDING so terminal records stay immutable.
	_, err := s.pool.Exec(ctx, `
		UPDATE transactions SET status = $2, error_message = $3
		WHERE transaction_id = $1 AND status = $4`,
		transactionID, string(domain.StatusFailed), message, string(domain.StatusPending))
	if err != nil {
		return storeErr("fail transaction", err)
	}
	return nil
}

// Atomic runs fn inside one database transaction. fn returning an error
// rolls everything back.
func (s *Store) Atomic(ctx context.Context, fromNumber, toNumber string, fn func(engine.AtomicStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback(ctx)

	if s.advisoryLocks {
		if err := acquirePairLock(ctx, tx, fromNumber, toNumber); err != nil {
			return storeErr("advisory lock", err)
		}
	}

	if err := fn(&atomicStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// acquirePairLock serializes transfers over the same account pair. The key
// is the sorted pair so A->B and B->A contend on the same lock; it releases
// automatically at transaction end.
func acquirePairLock(ctx context.Context, tx pgx.Tx, a, b string) error {
	if b < a {
		a, b = b, a
	}
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, a+"|"+b)
	return err
}

type atomicStore struct {
	tx pgx.Tx
}

func (a *atomicStore) TransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return transactionByID(ctx, a.tx, transactionID)
}

func (a *atomicStore) AccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return accountByID(ctx, a.tx, id)
}

func (a *atomicStore) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	tag, err := a.tx.Exec(ctx, `
		UPDATE accounts SET balance = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3`,
		id, balance.StringFixed(2), expectedVersion)
	if err != nil {
		return storeErr("update balance", err)
	}
	if tag.RowsAffected() == 0 {
		// A concurrent writer moved the version since this unit read it.
		return domain.ErrVersionConflict
	}
	return nil
}

func (a *atomicStore) CompleteTransaction(ctx context.Context, transactionID string, completedAt time.Time) error {
	tag, err := a.tx.Exec(ctx, `
		UPDATE transactions SET status = $2, completed_at = $3
		WHERE transaction_id = $1 AND status = $4`,
		transactionID, string(domain.StatusCompleted), completedAt, string(domain.StatusPending))
	if err != nil {
		return storeErr("complete transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}
