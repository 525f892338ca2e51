package repository

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"
)

// WithRetry runs fn in a transaction, retrying with jittered backoff while
// shouldRetry accepts the error. A nil shouldRetry retries transient errors only.
func WithRetry(ctx context.Context, db *gorm.DB, maxRetries int, shouldRetry func(error) bool, fn func(tx *gorm.DB) error) error {
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}
	backoff := 20 * time.Millisecond

	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		if attempt >= maxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, err)
		}

		jitter := time.Duration(rand.Int63n(int64(backoff / 4)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}
