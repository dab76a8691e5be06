package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/engine"
)

func seedAccount(t *testing.T, s *Store, number, balance string) *domain.Account {
	t.Helper()
	acc := &domain.Account{
		AccountNumber: number,
		Balance:       decimal.RequireFromString(balance),
	}
	require.NoError(t, s.CreateAccount(context.Background(), acc))
	return acc
}

func seedTransaction(t *testing.T, s *Store, id string, from, to *domain.Account) *domain.Transaction {
	t.Helper()
	txn := &domain.Transaction{
		ID:                uuid.New(),
		TransactionID:     id,
		FromAccountID:     from.ID,
		ToAccountID:       to.ID,
		FromAccountNumber: from.AccountNumber,
		ToAccountNumber:   to.AccountNumber,
		Amount:            decimal.RequireFromString("10.00"),
		Status:            domain.StatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, s.CreateTransaction(context.Background(), txn))
	return txn
}

func TestAccountLookups(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedAccount(t, s, "ACC001", "10.00")
	seedAccount(t, s, "ACC002", "20.00")

	acc, err := s.AccountByNumber(ctx, "ACC001")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, int64(1), acc.Version)

	missing, err := s.AccountByNumber(ctx, "ACC404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	batch, err := s.AccountsByNumber(ctx, "ACC001", "ACC404", "ACC002")
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.NotContains(t, batch, "ACC404")
}

func TestReadsReturnOwnedSnapshots(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedAccount(t, s, "ACC001", "10.00")

	first, err := s.AccountByNumber(ctx, "ACC001")
	require.NoError(t, err)
	first.Balance = decimal.RequireFromString("999999.00")

	second, err := s.AccountByNumber(ctx, "ACC001")
	require.NoError(t, err)
	assert.Equal(t, "10.00", second.Balance.StringFixed(2))
}

func TestDuplicateTransactionID(t *testing.T) {
	s := NewStore()
	from := seedAccount(t, s, "ACC001", "10.00")
	to := seedAccount(t, s, "ACC002", "0.00")
	seedTransaction(t, s, "txn-1", from, to)

	err := s.CreateTransaction(context.Background(), &domain.Transaction{
		ID:            uuid.New(),
		TransactionID: "txn-1",
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        decimal.RequireFromString("1.00"),
		Status:        domain.StatusPending,
	})

	var dup *domain.DuplicateTransactionError
	require.ErrorAs(t, err, &dup)
}

func TestConditionalWriteRejectsStaleVersion(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	acc := seedAccount(t, s, "ACC001", "100.00")

	err := s.Atomic(ctx, "ACC001", "ACC002", func(tx engine.AtomicStore) error {
		return tx.UpdateAccountBalance(ctx, acc.ID, decimal.RequireFromString("90.00"), acc.Version+7)
	})
	require.True(t, errors.Is(err, domain.ErrVersionConflict))

	// Nothing committed.
	cur, err := s.AccountByNumber(ctx, "ACC001")
	require.NoError(t, err)
	assert.Equal(t, "100.00", cur.Balance.StringFixed(2))
	assert.Equal(t, int64(1), cur.Version)
}

func TestAtomicStagesAndCommitsTogether(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	from := seedAccount(t, s, "ACC001", "100.00")
	to := seedAccount(t, s, "ACC002", "0.00")
	txn := seedTransaction(t, s, "txn-1", from, to)

	err := s.Atomic(ctx, "ACC001", "ACC002", func(tx engine.AtomicStore) error {
		if err := tx.UpdateAccountBalance(ctx, from.ID, decimal.RequireFromString("90.00"), from.Version); err != nil {
			return err
		}
		if err := tx.UpdateAccountBalance(ctx, to.ID, decimal.RequireFromString("10.00"), to.Version); err != nil {
			return err
		}
		return tx.CompleteTransaction(ctx, txn.TransactionID, time.Now().UTC())
	})
	require.NoError(t, err)

	fromAfter, _ := s.AccountByNumber(ctx, "ACC001")
	toAfter, _ := s.AccountByNumber(ctx, "ACC002")
	assert.Equal(t, "90.00", fromAfter.Balance.StringFixed(2))
	assert.Equal(t, int64(2), fromAfter.Version)
	assert.Equal(t, "10.00", toAfter.Balance.StringFixed(2))

	done, err := s.TransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
}

func TestAtomicRollsBackEverythingOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	from := seedAccount(t, s, "ACC001", "100.00")
	to := seedAccount(t, s, "ACC002", "0.00")
	txn := seedTransaction(t, s, "txn-1", from, to)

	boom := errors.New("boom")
	err := s.Atomic(ctx, "ACC001", "ACC002", func(tx engine.AtomicStore) error {
		if err := tx.UpdateAccountBalance(ctx, from.ID, decimal.RequireFromString("90.00"), from.Version); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	after, _ := s.AccountByNumber(ctx, "ACC001")
	assert.Equal(t, "100.00", after.Balance.StringFixed(2))
	pending, _ := s.TransactionByID(ctx, txn.TransactionID)
	assert.Equal(t, domain.StatusPending, pending.Status)
}

func TestCompleteTransactionRequiresPending(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	from := seedAccount(t, s, "ACC001", "100.00")
	to := seedAccount(t, s, "ACC002", "0.00")
	txn := seedTransaction(t, s, "txn-1", from, to)
	require.NoError(t, s.MarkTransactionFailed(ctx, txn.TransactionID, "forced"))

	err := s.Atomic(ctx, "ACC001", "ACC002", func(tx engine.AtomicStore) error {
		return tx.CompleteTransaction(ctx, txn.TransactionID, time.Now().UTC())
	})
	require.True(t, errors.Is(err, domain.ErrVersionConflict))
}

func TestMarkTransactionFailedIsTerminalOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	from := seedAccount(t, s, "ACC001", "100.00")
	to := seedAccount(t, s, "ACC002", "0.00")
	txn := seedTransaction(t, s, "txn-1", from, to)

	require.NoError(t, s.MarkTransactionFailed(ctx, txn.TransactionID, "first reason"))
	require.NoError(t, s.MarkTransactionFailed(ctx, txn.TransactionID, "second reason"))

	failed, err := s.TransactionByID(ctx, txn.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Equal(t, "first reason", failed.ErrorMessage)
}
