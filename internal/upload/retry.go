package upload

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// temporary is implemented by collaborator errors that know whether a retry
// can help, e.g. api.StatusError.
type temporary interface {
	Temporary() bool
}

func isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var t temporary
	if errors.As(err, &t) {
		return !t.Temporary()
	}
	return false
}

// retry runs op with a fresh per-attempt timeout, backing off exponentially
// between attempts. Errors that report themselves as not temporary stop the
// loop at once.
func retry(ctx context.Context, opts Options, timeout time.Duration, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.RetryInterval
	eb.MaxInterval = 30 * opts.RetryInterval
	eb.MaxElapsedTime = 0

	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := op(callCtx)
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
