package safeguarding

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryPolicy runs an I/O step with a per-attempt timeout and a fixed number
// of retries. Operations return backoff.Permanent to stop early.
type retryPolicy struct {
	timeout  time.Duration
	interval time.Duration
	retries  uint64
}

func (p retryPolicy) do(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), p.retries),
		ctx,
	)
	return backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return op(attemptCtx)
	}, bo)
}
