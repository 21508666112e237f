// Package retryutil wraps remote calls with bounded exponential backoff.
//
// Transient remote failures are retried up to a configured number of
// attempts before being recorded as failures; retries never mask a
// cancelled context.
package retryutil

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const initialInterval = 500 * time.Millisecond

// Do runs operation, retrying with exponential backoff up to maxRetries
// additional attempts. Context cancellation stops the retry loop. Wrap an
// error with Permanent to stop retrying early.
func Do(ctx context.Context, maxRetries uint64, operation func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialInterval

	err := backoff.Retry(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx),
	)
	if err != nil {
		// backoff returns the operation's final error; keep it intact so
		// callers can classify it with errors.Is.
		return fmt.Errorf("remote call failed: %w", err)
	}

	return nil
}

// Permanent marks err as non-retryable, so Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
