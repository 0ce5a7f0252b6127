package perfectcorp

import (
	"context"
	"math/rand"
	"time"
)

// retryPolicy is the one reusable backoff helper shared by the upload
// strategies and the result downloader. Delay doubles per attempt with a
// small jitter; a non-retryable error aborts immediately.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	retryable   func(error) bool

	// sleep is overridable in tests; nil means real sleeping.
	sleep func(ctx context.Context, d time.Duration) error
}

func (p retryPolicy) do(ctx context.Context, op func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		}
	}

	delay := p.baseDelay
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if p.retryable != nil && !p.retryable(lastErr) {
			return lastErr
		}
		if attempt == p.maxAttempts {
			break
		}

		jitter := time.Duration(0)
		if delay > 0 {
			jitter = time.Duration(rand.Int63n(int64(delay)/4 + 1))
		}
		if err := sleep(ctx, delay+jitter); err != nil {
			return err
		}
		delay *= 2
	}
	return lastErr
}
