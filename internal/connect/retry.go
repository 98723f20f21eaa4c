// Package connect verifies that a backing service answers before a stage starts using it.
package connect

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff bounds shared by every ping. Retries are capped separately by the caller.
var (
	InitialInterval = 500 * time.Millisecond
	MaxInterval     = 10 * time.Second
	MaxElapsedTime  = 30 * time.Second
)

// Ping calls check once, then up to retries more times with exponential backoff.
// With retries <= 0 the first failure is returned immediately.
func Ping(ctx context.Context, retries int, check func(context.Context) error) error {
	if retries < 0 {
		retries = 0
	}

	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = InitialInterval
	exponentialBackoff.MaxInterval = MaxInterval
	exponentialBackoff.MaxElapsedTime = MaxElapsedTime

	policy := backoff.WithContext(backoff.WithMaxRetries(exponentialBackoff, uint64(retries)), ctx)

	operation := func() error {
		return check(ctx)
	}

	return backoff.Retry(operation, policy)
}
