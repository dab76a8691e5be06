package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/worker"
)

// TransferQueue implements worker.TransferQueue on the transfer_jobs table.
type TransferQueue struct {
	pool *pgxpool.Pool
}

func NewTransferQueue(pool *pgxpool.Pool) *TransferQueue {
	return &TransferQueue{pool: pool}
}

func (q *TransferQueue) Enqueue(ctx context.Context, transactionID string) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO transfer_jobs (transaction_id) VALUES ($1)`, transactionID)
	if err != nil {
		return storeErr("enqueue transfer job", err)
	}
	return nil
}

// Dequeue claims one runnable job. SKIP LOCKED keeps competing workers off
// each other's jobs; the RUNNING status keeps a claimed job invisible until
// it is finished or rescheduled.
func (q *TransferQueue) Dequeue(ctx context.Context) (*worker.TransferJob, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("dequeue transfer job", err)
	}
	defer tx.Rollback(ctx)

	var job worker.TransferJob
	err = tx.QueryRow(ctx, `
		SELECT id, transaction_id, attempts, next_run_at
		FROM transfer_jobs
		WHERE status = 'PENDING' AND next_run_at <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&job.ID, &job.TransactionID, &job.Attempts, &job.NextRunAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("dequeue transfer job", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE transfer_jobs SET status = 'RUNNING' WHERE id = $1`, job.ID); err != nil {
		return nil, storeErr("dequeue transfer job", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("dequeue transfer job", err)
	}
	return &job, nil
}

func (q *TransferQueue) MarkDone(ctx context.Context, jobID int64) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE transfer_jobs SET status = 'COMPLETED' WHERE id = $1`, jobID)
	if err != nil {
		return storeErr("finish transfer job", err)
	}
	return nil
}

func (q *TransferQueue) MarkDead(ctx context.Context, jobID int64) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE transfer_jobs SET status = 'FAILED' WHERE id = $1`, jobID)
	if err != nil {
		return storeErr("fail transfer job", err)
	}
	return nil
}

func (q *TransferQueue) Reschedule(ctx context.Context, jobID int64, attempts int, nextRunAt time.Time) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE transfer_jobs SET status = 'PENDING', attempts = $2, next_run_at = $3
		WHERE id = $1`, jobID, attempts, nextRunAt)
	if err != nil {
		return storeErr("reschedule transfer job", err)
	}
	return nil
}

// WebhookQueue implements worker.WebhookQueue on the webhook_jobs table.
type WebhookQueue struct {
	pool *pgxpool.Pool
}

func NewWebhookQueue(pool *pgxpool.Pool) *WebhookQueue {
	return &WebhookQueue{pool: pool}
}

func (q *WebhookQueue) Enqueue(ctx context.Context, url string, payload []byte) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO webhook_jobs (url, payload) VALUES ($1, $2)`, url, payload)
	if err != nil {
		return storeErr("enqueue webhook job", err)
	}
	return nil
}

func (q *WebhookQueue) Dequeue(ctx context.Context) (*worker.WebhookJob, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("dequeue webhook job", err)
	}
	defer tx.Rollback(ctx)

	var job worker.WebhookJob
	err = tx.QueryRow(ctx, `
		SELECT id, url, payload, attempts, next_run_at
		FROM webhook_jobs
		WHERE status = 'PENDING' AND next_run_at <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&job.ID, &job.URL, &job.Payload, &job.Attempts, &job.NextRunAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("dequeue webhook job", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE webhook_jobs SET status = 'RUNNING' WHERE id = $1`, job.ID); err != nil {
		return nil, storeErr("dequeue webhook job", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("dequeue webhook job", err)
	}
	return &job, nil
}

func (q *WebhookQueue) MarkDone(ctx context.Context, jobID int64) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE webhook_jobs SET status = 'COMPLETED' WHERE id = $1`, jobID)
	if err != nil {
		return storeErr("finish webhook job", err)
	}
	return nil
}

func (q *WebhookQueue) MarkDead(ctx context.Context, jobID int64) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE webhook_jobs SET status = 'FAILED' WHERE id = $1`, jobID)
	if err != nil {
		return storeErr("fail webhook job", err)
	}
	return nil
}

func (q *WebhookQueue) Reschedule(ctx context.Context, jobID int64, attempts int, nextRunAt time.Time) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE webhook_jobs SET status = 'PENDING', attempts = $2, next_run_at = $3
		WHERE id = $1`, jobID, attempts, nextRunAt)
	if err != nil {
		return storeErr("reschedule webhook job", err)
	}
	return nil
}
