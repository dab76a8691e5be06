package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/notifications"
)

// Notifier queues webhook events for terminal transfers. A nil *Notifier is
// a valid no-op so callers never need to branch on configuration.
type Notifier struct {
	queue WebhookQueue
	url   string
}

func NewNotifier(queue WebhookQueue, url string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{queue: queue, url: url}
}

// TransferFinished enqueues the terminal-transfer event. Delivery problems
// never propagate: the transfer is already committed and the dispatcher
// retries queued jobs on its own.
func (n *Notifier) TransferFinished(ctx context.Context, txn *domain.Transaction) {
	if n == nil || !txn.Status.Terminal() {
		return
	}
	payload, err := notifications.TransferEventPayload(txn)
	if err != nil {
		slog.Error("could not build webhook payload", "transaction_id", txn.TransactionID, "error", err)
		return
	}
	if err := n.queue.Enqueue(ctx, n.url, payload); err != nil {
		slog.Error("could not queue webhook", "transaction_id", txn.TransactionID, "error", err)
	}
}

// WebhookDispatcher drains the webhook queue, posting each event with
// bounded retries, in the same poll-reschedule shape as the transfer
// executor.
type WebhookDispatcher struct {
	queue    WebhookQueue
	secret   string
	interval time.Duration

	stop    chan struct{}
	stopped chan struct{}
}

func NewWebhookDispatcher(queue WebhookQueue, secret string) *WebhookDispatcher {
	return &WebhookDispatcher{
		queue:    queue,
		secret:   secret,
		interval: 5 * time.Second,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (w *WebhookDispatcher) Start() {
	go func() {
		slog.Info("webhook dispatcher started", "poll_interval", w.interval)
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

func (w *WebhookDispatcher) Stop() {
	close(w.stop)
	<-w.stopped
	slog.Info("webhook dispatcher stopped")
}

func (w *WebhookDispatcher) processOne(ctx context.Context) bool {
	job, err := w.queue.Dequeue(ctx)
	if err != nil {
		slog.Error("webhook queue dequeue failed", "error", err)
		return false
	}
	if job == nil {
		return false
	}

	sendErr := notifications.SendWebhook(job.URL, job.Payload, w.secret)
	if sendErr == nil {
		slog.Info("webhook delivered", "job_id", job.ID, "url", job.URL)
		if err := w.queue.MarkDone(ctx, job.ID); err != nil {
			slog.Error("could not mark webhook job done", "job_id", job.ID, "error", err)
		}
		return true
	}

	attempts := job.Attempts + 1
	if attempts >= maxJobAttempts {
		slog.Error("webhook job dead after max attempts", "job_id", job.ID, "error", sendErr)
		if err := w.queue.MarkDead(ctx, job.ID); err != nil {
			slog.Error("could not mark webhook job dead", "job_id", job.ID, "error", err)
		}
		return true
	}
	nextRun := time.Now().Add(time.Duration(attempts*10+10) * time.Second)
	slog.Warn("webhook delivery failed, rescheduled",
		"job_id", job.ID, "attempts", attempts, "next_run", nextRun, "error", sendErr)
	if err := w.queue.Reschedule(ctx, job.ID, attempts, nextRun); err != nil {
		slog.Error("could not reschedule webhook job", "job_id", job.ID, "error", err)
	}
	return true
}
