package engine

import (
	"time"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
)

const (
	defaultMaxAttempts = 5
	defaultBackoffBase = 100 * time.Millisecond
	defaultBackoffCap  = time.Second
)

// RetryPolicy bounds the engine's optimistic retry loop. Only version
// conflicts are ever retried; everything else fails on the first attempt.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, not the number of retries.
	MaxAttempts int
	// Backoff returns the sleep before re-running attempt n (0-based, called
	// after attempt n failed).
	Backoff func(attempt int) time.Duration
}

// DefaultRetryPolicy is 5 attempts with exponential backoff starting at
// 100ms, doubling, capped at 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		Backoff: func(attempt int) time.Duration {
			d := backoff.Exponential(defaultBackoffBase, attempt)
			if d > defaultBackoffCap {
				d = defaultBackoffCap
			}
			return d
		},
	}
}

// NoDelayRetryPolicy keeps the attempt bound but sleeps zero between
// attempts. Meant for tests.
func NoDelayRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     func(int) time.Duration { return 0 },
	}
}
