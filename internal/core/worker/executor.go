package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/engine"
)

const (
	defaultPollInterval = time.Second
	maxJobAttempts      = 5
)

// TransferExecutor drains the transfer queue, driving each queued
// transaction through Engine.Execute. Because Execute idempotently
// re-returns terminal transactions, the queue only needs at-least-once
// delivery.
type TransferExecutor struct {
	queue    TransferQueue
	engine   *engine.Engine
	notifier *Notifier
	interval time.Duration

	stop    chan struct{}
	stopped chan struct{}
}

// NewTransferExecutor wires an executor. notifier may be nil when webhooks
// are not configured.
func NewTransferExecutor(queue TransferQueue, eng *engine.Engine, notifier *Notifier) *TransferExecutor {
	return &TransferExecutor{
		queue:    queue,
		engine:   eng,
		notifier: notifier,
		interval: defaultPollInterval,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the polling loop in its own goroutine.
func (w *TransferExecutor) Start() {
	go func() {
		slog.Info("transfer executor started", "poll_interval", w.interval)
		defer close(w.stopped)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				for w.processOne(context.Background()) {
				}
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight job to finish.
func (w *TransferExecutor) Stop() {
	close(w.stop)
	<-w.stopped
	slog.Info("transfer executor stopped")
}

// processOne handles a single job; it reports whether a job was found so the
// caller can drain the queue before sleeping again.
func (w *TransferExecutor) processOne(ctx context.Context) bool {
	job, err := w.queue.Dequeue(ctx)
	if err != nil {
		slog.Error("transfer queue dequeue failed", "error", err)
		return false
	}
	if job == nil {
		return false
	}

	res, execErr := w.engine.Execute(ctx, job.TransactionID)
	if execErr == nil {
		w.finishJob(ctx, job, &res.Transaction)
		return true
	}

	// Business rejections and exhausted conflicts left a terminal FAILED
	// record behind; the job did its work and must not run again.
	var ife *domain.InsufficientFundsError
	var ccf *domain.ConcurrencyConflictError
	var anf *domain.AccountNotFoundError
	var verr *domain.ValidationError
	if errors.As(execErr, &ife) || errors.As(execErr, &ccf) || errors.As(execErr, &anf) || errors.As(execErr, &verr) {
		slog.Warn("queued transfer failed terminally",
			"transaction_id", job.TransactionID, "error", execErr)
		txn, err := w.engine.GetByID(ctx, job.TransactionID)
		if err == nil && txn != nil {
			w.finishJob(ctx, job, txn)
		} else {
			w.finishJob(ctx, job, nil)
		}
		return true
	}

	// Infrastructure failure: back off and retry the job, give up after the
	// attempt budget.
	attempts := job.Attempts + 1
	if attempts >= maxJobAttempts {
		slog.Error("transfer job dead after max attempts",
			"transaction_id", job.TransactionID, "attempts", attempts, "error", execErr)
		if err := w.queue.MarkDead(ctx, job.ID); err != nil {
			slog.Error("could not mark transfer job dead", "job_id", job.ID, "error", err)
		}
		return true
	}
	nextRun := time.Now().Add(time.Duration(attempts*10+10) * time.Second)
	slog.Warn("transfer job rescheduled",
		"transaction_id", job.TransactionID, "attempts", attempts, "next_run", nextRun, "error", execErr)
	if err := w.queue.Reschedule(ctx, job.ID, attempts, nextRun); err != nil {
		slog.Error("could not reschedule transfer job", "job_id", job.ID, "error", err)
	}
	return true
}

func (w *TransferExecutor) finishJob(ctx context.Context, job *TransferJob, txn *domain.Transaction) {
	if err := w.queue.MarkDone(ctx, job.ID); err != nil {
		slog.Error("could not mark transfer job done", "job_id", job.ID, "error", err)
	}
	if txn != nil {
		w.notifier.TransferFinished(ctx, txn)
	}
}
