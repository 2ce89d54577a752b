// Package jobs runs the periodic stats rollup and attachment cleanup.
package jobs

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Job is one unit of background work.
type Job func(ctx context.Context) error

// Attempts is the total number of tries a retried job gets.
const Attempts = 3

// WithRetry runs job up to attempts times with a fixed delay between tries.
// The last error is returned once attempts are exhausted or ctx is done.
func WithRetry(name string, job Job, delay time.Duration, attempts int, log *zap.Logger) Job {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context) error {
		b := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
			ctx,
		)
		op := func() error { return job(ctx) }
		notify := func(err error, wait time.Duration) {
			log.Warn("job failed, retrying", zap.String("job", name), zap.Duration("wait", wait), zap.Error(err))
		}
		return backoff.RetryNotify(op, b, notify)
	}
}
