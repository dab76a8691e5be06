package memory

import (
	"context"
	"time"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/worker"
)

type jobStatus string

const (
	jobPending jobStatus = "PENDING"
	jobRunning jobStatus = "RUNNING"
	jobDone    jobStatus = "COMPLETED"
	jobDead    jobStatus = "FAILED"
)

type transferJob struct {
	id            int64
	transactionID string
	status        jobStatus
	attempts      int
	nextRunAt     time.Time
}

type webhookJob struct {
	id        int64
	url       string
	payload   []byte
	status    jobStatus
	attempts  int
	nextRunAt time.Time
}

// TransferQueue exposes the store's in-memory transfer job queue.
func (s *Store) TransferQueue() worker.TransferQueue { return (*transferQueue)(s) }

// WebhookQueue exposes the store's in-memory webhook job queue.
func (s *Store) WebhookQueue() worker.WebhookQueue { return (*webhookQueue)(s) }

type transferQueue Store

func (q *transferQueue) Enqueue(_ context.Context, transactionID string) error {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextJobID++
	s.transferJobs = append(s.transferJobs, &transferJob{
		id:            s.nextJobID,
		transactionID: transactionID,
		status:        jobPending,
		nextRunAt:     time.Now(),
	})
	return nil
}

func (q *transferQueue) Dequeue(_ context.Context) (*worker.TransferJob, error) {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, j := range s.transferJobs {
		if j.status == jobPending && !j.nextRunAt.After(now) {
			j.status = jobRunning
			return &worker.TransferJob{
				ID:            j.id,
				TransactionID: j.transactionID,
				Attempts:      j.attempts,
				NextRunAt:     j.nextRunAt,
			}, nil
		}
	}
	return nil, nil
}

func (q *transferQueue) MarkDone(_ context.Context, jobID int64) error {
	return (*Store)(q).setTransferJobStatus(jobID, jobDone)
}

func (q *transferQueue) MarkDead(_ context.Context, jobID int64) error {
	return (*Store)(q).setTransferJobStatus(jobID, jobDead)
}

func (q *transferQueue) Reschedule(_ context.Context, jobID int64, attempts int, nextRunAt time.Time) error {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.transferJobs {
		if j.id == jobID {
			j.status = jobPending
			j.attempts = attempts
			j.nextRunAt = nextRunAt
			return nil
		}
	}
	return nil
}

func (s *Store) setTransferJobStatus(jobID int64, status jobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.transferJobs {
		if j.id == jobID {
			j.status = status
			return nil
		}
	}
	return nil
}

type webhookQueue Store

func (q *webhookQueue) Enqueue(_ context.Context, url string, payload []byte) error {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextJobID++
	s.webhookJobs = append(s.webhookJobs, &webhookJob{
		id:        s.nextJobID,
		url:       url,
		payload:   append([]byte(nil), payload...),
		status:    jobPending,
		nextRunAt: time.Now(),
	})
	return nil
}

func (q *webhookQueue) Dequeue(_ context.Context) (*worker.WebhookJob, error) {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, j := range s.webhookJobs {
		if j.status == jobPending && !j.nextRunAt.After(now) {
			j.status = jobRunning
			return &worker.WebhookJob{
				ID:        j.id,
				URL:       j.url,
				Payload:   append([]byte(nil), j.payload...),
				Attempts:  j.attempts,
				NextRunAt: j.nextRunAt,
			}, nil
		}
	}
	return nil, nil
}

func (q *webhookQueue) MarkDone(_ context.Context, jobID int64) error {
	return (*Store)(q).setWebhookJobStatus(jobID, jobDone)
}

func (q *webhookQueue) MarkDead(_ context.Context, jobID int64) error {
	return (*Store)(q).setWebhookJobStatus(jobID, jobDead)
}

func (q *webhookQueue) Reschedule(_ context.Context, jobID int64, attempts int, nextRunAt time.Time) error {
	s := (*Store)(q)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.webhookJobs {
		if j.id == jobID {
			j.status = jobPending
			j.attempts = attempts
			j.nextRunAt = nextRunAt
			return nil
		}
	}
	return nil
}

func (s *Store) setWebhookJobStatus(jobID int64, status jobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.webhookJobs {
		if j.id == jobID {
			j.status = status
			return nil
		}
	}
	return nil
}
