package store

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how often an operation is retried after ErrStoreUnavailable.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy retries three times with exponential backoff from 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   time.Second,
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// WithRetry runs fn, retrying with backoff while it fails with
// ErrStoreUnavailable. Any other error, including ErrWriteOutcomeUnknown, is
// returned immediately. Context cancellation stops the retries.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if IsRetryableError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	return err
}
