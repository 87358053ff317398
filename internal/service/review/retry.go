package review

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// DefaultConflictAttempts is how many times callers re-run a review that
// lost a concurrent write before giving up.
const DefaultConflictAttempts = 3

// RetryOnConflict runs fn up to attempts times while it fails with
// ErrConflict. Each attempt must re-read and recompute, which ReviewCard
// does. The last error is returned once attempts are exhausted.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.WithJitter(5*time.Millisecond, retry.NewConstant(10*time.Millisecond)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && errors.Is(err, ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}
