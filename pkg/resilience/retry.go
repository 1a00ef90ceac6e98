// Package resilience holds the small fault-handling primitives shared by the
// provider sessions and the engine facade.
package resilience

import (
	"context"
	"time"
)

// RetryPolicy retries an operation with exponential backoff. Zero values get
// sane defaults; a nil Retryable retries everything.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	Retryable   func(error) bool
}

func NewRetryPolicy(maxAttempts int, backoff time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxAttempts: maxAttempts, Backoff: backoff, MaxBackoff: 5 * time.Second}
}

// Do runs fn until it succeeds, the attempts are exhausted, the error is not
// retryable, or the context ends. The last error is returned.
func (r RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	backoff := r.Backoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= r.MaxAttempts {
			return err
		}
		if r.Retryable != nil && !r.Retryable(err) {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return err
		}
		backoff *= 2
		if r.MaxBackoff > 0 && backoff > r.MaxBackoff {
			backoff = r.MaxBackoff
		}
	}
}
