package database

import (
	"context"
	"time"

	"nexus/pkg/logger"
)

// RetryPolicy bounds how long startup waits for a backing store.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// withRetry runs fn until it succeeds, the attempts run out or ctx ends.
// The wait between attempts is fixed.
func withRetry(ctx context.Context, name string, policy RetryPolicy, fn func(context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		logger.Warn("%s connection attempt %d/%d failed: %v", name, i, attempts, err)

		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Backoff):
		}
	}
	return err
}
