package worker

import (
	"context"
	"time"
)

// TransferJob is one queued request to execute a pending transfer.
type TransferJob struct {
	ID            int64
	TransactionID string
	Attempts      int
	NextRunAt     time.Time
}

// TransferQueue is the durable queue the async transfer path dispatches
// through. Dequeue returns (nil, nil) when no job is ready and must hand a
// given job to at most one worker at a time.
type TransferQueue interface {
	Enqueue(ctx context.Context, transactionID string) error
	Dequeue(ctx context.Context) (*TransferJob, error)
	MarkDone(ctx context.Context, jobID int64) error
	Reschedule(ctx context.Context, jobID int64, attempts int, nextRunAt time.Time) error
	MarkDead(ctx context.Context, jobID int64) error
}

// WebhookJob is one pending webhook delivery.
type WebhookJob struct {
	ID        int64
	URL       string
	Payload   []byte
	Attempts  int
	NextRunAt time.Time
}

// WebhookQueue queues outbound webhook deliveries.
type WebhookQueue interface {
	Enqueue(ctx context.Context, url string, payload []byte) error
	Dequeue(ctx context.Context) (*WebhookJob, error)
	MarkDone(ctx context.Context, jobID int64) error
	Reschedule(ctx context.Context, jobID int64, attempts int, nextRunAt time.Time) error
	MarkDead(ctx context.Context, jobID int64) error
}
