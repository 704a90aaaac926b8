package services

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries a call while it fails with an overloaded APIError.
// Attempts are numbered from 1; the delay before attempt n+1 is Backoff(n).
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy waits 2s then 4s between three attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff,
		Sleep:       SleepContext,
	}
}

// ExponentialBackoff returns 2^attempt seconds.
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do calls fn until it succeeds, fails with anything other than an
// overloaded APIError, or MaxAttempts is reached. The last error is
// returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Class != ClassOverloaded {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		if sleepErr := p.Sleep(ctx, p.Backoff(attempt)); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}
