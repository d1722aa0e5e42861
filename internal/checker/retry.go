// internal/checker/retry.go
package checker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryDelay is the linear backoff unit used when none is configured.
const DefaultRetryDelay = time.Second

// RetryPolicy bounds one operation's attempts. Backoff is linear: after
// failed attempt n the wait is n times BaseDelay. There is no jitter.
type RetryPolicy struct {
	// MaxAttempts counts the first attempt; values below 1 mean 1.
	MaxAttempts int
	BaseDelay   time.Duration
	// OnRetry is called before each wait with the failed attempt number.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// linearBackOff waits n*base before the nth retry.
type linearBackOff struct {
	base time.Duration
	n    int
}

var _ backoff.BackOff = (*linearBackOff)(nil)

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.base
}

func (b *linearBackOff) Reset() { b.n = 0 }

// newBackOff builds the schedule for policy, bounded by its attempts and ctx.
func newBackOff(ctx context.Context, policy RetryPolicy) backoff.BackOffContext {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	baseDelay := policy.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultRetryDelay
	}
	b := backoff.WithMaxRetries(&linearBackOff{base: baseDelay}, uint64(maxAttempts-1))
	return backoff.WithContext(b, ctx)
}

// WithRetry calls op until it succeeds or the policy's attempts run out.
// The backoff wait stops early only when ctx is done, in which case the
// context's error is returned.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	b := newBackOff(ctx, policy)

	attempt := 0
	operation := func() (T, error) {
		attempt++
		return op(ctx)
	}
	notify := func(err error, wait time.Duration) {
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, wait)
		}
	}

	value, err := backoff.RetryNotifyWithData(operation, b, notify)
	if err == nil {
		return value, nil
	}
	var zero T
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	return zero, &ExhaustedError{Attempts: attempt, Err: err}
}

// sleep waits for d or until ctx is done. It paces the fixed settle waits
// after navigation, which are not retries.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
