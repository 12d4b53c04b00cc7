package usecase

import (
	"context"
	"time"

	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
)

// StoragePolicy bounds every storage call: each attempt runs under Timeout
// and a StorageUnavailable failure is retried up to Retries more times.
type StoragePolicy struct {
	Timeout time.Duration
	Retries int
}

func DefaultStoragePolicy() StoragePolicy {
	return StoragePolicy{Timeout: 5 * time.Second, Retries: 3}
}

func (p StoragePolicy) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		lastErr = p.attempt(ctx, fn)
		if lastErr == nil || !errors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.Retries {
			break
		}

		logger.Warn("Storage unavailable during %s (attempt %d/%d): %v", op, attempt+1, p.Retries+1, lastErr)
		select {
		case <-ctx.Done():
			return errors.StorageUnavailable("Storage unavailable during "+op, ctx.Err())
		case <-time.After(backoffDuration(attempt + 1)):
		}
	}
	return lastErr
}

// create runs a create of a record whose id was fixed before the first
// attempt. AlreadyExists on a later attempt means an earlier attempt committed
// and only its acknowledgement was lost, so it counts as success.
func (p StoragePolicy) create(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempted := false
	return p.run(ctx, op, func(ctx context.Context) error {
		err := fn(ctx)
		if attempted && errors.Is(err, errors.CodeAlreadyExists) {
			logger.Warn("Earlier attempt of %s already committed", op)
			return nil
		}
		attempted = true
		return err
	})
}

func (p StoragePolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	err := fn(attemptCtx)
	if err != nil && errors.Code(err) == "" && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return errors.StorageUnavailable("Storage call timed out", err)
	}
	return err
}

func backoffDuration(attempt int) time.Duration {
	base := 50 * time.Millisecond
	if attempt <= 1 {
		return base
	}
	return base * time.Duration(attempt)
}
