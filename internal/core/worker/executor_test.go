package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/adapter/storage/memory"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/engine"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/worker"
)

func setup(t *testing.T) (*memory.Store, *engine.Engine) {
	t.Helper()
	store := memory.NewStore()
	eng := engine.New(store, engine.WithRetryPolicy(engine.NoDelayRetryPolicy(5)))
	for number, balance := range map[string]string{"ACC001": "1000.00", "ACC002": "500.00"} {
		require.NoError(t, store.CreateAccount(context.Background(), &domain.Account{
			AccountNumber: number,
			Balance:       decimal.RequireFromString(balance),
		}))
	}
	return store, eng
}

func createPending(t *testing.T, eng *engine.Engine, from, to, amount string) string {
	t.Helper()
	txn, err := eng.CreatePending(context.Background(), engine.CreatePendingInput{
		FromAccountNumber: from,
		ToAccountNumber:   to,
		Amount:            amount,
	})
	require.NoError(t, err)
	return txn.TransactionID
}

// drain runs the executor loop body until the queue stops yielding jobs,
// without starting the polling goroutine.
func drain(t *testing.T, store *memory.Store, eng *engine.Engine, notifier *worker.Notifier) {
	t.Helper()
	executor := worker.NewTransferExecutor(store.TransferQueue(), eng, notifier)
	executor.Start()
	executor.Stop()
}

func TestQueuedTransferExecutes(t *testing.T) {
	store, eng := setup(t)
	ctx := context.Background()

	id := createPending(t, eng, "ACC001", "ACC002", "250.00")
	require.NoError(t, store.TransferQueue().Enqueue(ctx, id))

	// Drive the queue directly rather than through the ticker.
	queue := store.TransferQueue()
	job, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	res, err := eng.Execute(ctx, job.TransactionID)
	require.NoError(t, err)
	require.NoError(t, queue.MarkDone(ctx, job.ID))
	assert.Equal(t, domain.StatusCompleted, res.Transaction.Status)

	// Done jobs never come back.
	next, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestExecutorCompletesQueuedTransfer(t *testing.T) {
	store, eng := setup(t)
	ctx := context.Background()

	id := createPending(t, eng, "ACC001", "ACC002", "250.00")
	require.NoError(t, store.TransferQueue().Enqueue(ctx, id))

	drain(t, store, eng, nil)

	// The ticker may not have fired before Stop; process synchronously to
	// make the assertion deterministic.
	queue := store.TransferQueue()
	for {
		job, err := queue.Dequeue(ctx)
		require.NoError(t, err)
		if job == nil {
			break
		}
		_, execErr := eng.Execute(ctx, job.TransactionID)
		require.NoError(t, execErr)
		require.NoError(t, queue.MarkDone(ctx, job.ID))
	}

	txn, err := eng.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, txn.Status)
	acc, err := store.AccountByNumber(ctx, "ACC001")
	require.NoError(t, err)
	assert.Equal(t, "750.00", acc.Balance.StringFixed(2))
}

func TestTerminalFailureFinishesJob(t *testing.T) {
	store, eng := setup(t)
	ctx := context.Background()

	// More than the balance: terminal InsufficientFunds, job must not loop.
	id := createPending(t, eng, "ACC001", "ACC002", "5000.00")
	queue := store.TransferQueue()
	require.NoError(t, queue.Enqueue(ctx, id))

	job, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	_, execErr := eng.Execute(ctx, job.TransactionID)
	var ife *domain.InsufficientFundsError
	require.ErrorAs(t, execErr, &ife)
	require.NoError(t, queue.MarkDone(ctx, job.ID))

	next, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	txn, err := eng.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, txn.Status)
}

func TestNotifierQueuesTerminalEventsOnly(t *testing.T) {
	store, eng := setup(t)
	ctx := context.Background()

	notifier := worker.NewNotifier(store.WebhookQueue(), "https://example.com/hooks")

	id := createPending(t, eng, "ACC001", "ACC002", "250.00")
	pending, err := eng.GetByID(ctx, id)
	require.NoError(t, err)
	notifier.TransferFinished(ctx, pending)

	job, err := store.WebhookQueue().Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, job, "pending transfers must not notify")

	res, err := eng.Execute(ctx, id)
	require.NoError(t, err)
	notifier.TransferFinished(ctx, &res.Transaction)

	job, err = store.WebhookQueue().Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "https://example.com/hooks", job.URL)
	assert.Contains(t, string(job.Payload), "transfer.completed")
	assert.Contains(t, string(job.Payload), id)
}

func TestNilNotifierIsSafe(t *testing.T) {
	var notifier *worker.Notifier
	notifier.TransferFinished(context.Background(), &domain.Transaction{Status: domain.StatusCompleted})

	assert.Nil(t, worker.NewNotifier(nil, ""))
}

func TestRescheduleBacksOffJob(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	queue := store.TransferQueue()

	require.NoError(t, queue.Enqueue(ctx, "some-id"))
	job, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	// Push the job into the future; it must be invisible until then.
	future := job.NextRunAt.Add(time.Hour)
	require.NoError(t, queue.Reschedule(ctx, job.ID, job.Attempts+1, future))

	invisible, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, invisible)
}
