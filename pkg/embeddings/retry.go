package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxAttempts bounds how often a transient embedding failure is
	// retried before ErrUnavailable is surfaced to the caller.
	DefaultMaxAttempts = 3

	// DefaultBackoff is the base delay between attempts. The delay doubles
	// after every failed attempt.
	DefaultBackoff = 250 * time.Millisecond
)

// Retrying wraps an Embedder with bounded retry and exponential backoff.
// After the final attempt fails the error is joined with ErrUnavailable so
// callers can match on it.
type Retrying struct {
	inner       Embedder
	maxAttempts int
	backoff     time.Duration
}

// NewRetrying wraps inner with retry semantics. Zero values for maxAttempts
// and backoff select the package defaults.
func NewRetrying(inner Embedder, maxAttempts int, backoff time.Duration) *Retrying {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	return &Retrying{
		inner:       inner,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Embed converts text into a vector embedding, retrying transient failures.
func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	delay := r.backoff
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		vec, err := r.inner.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		// Context cancellation is not transient; stop immediately.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt < r.maxAttempts {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}
	}

	return nil, errors.Join(ErrUnavailable, fmt.Errorf("after %d attempts: %w", r.maxAttempts, lastErr))
}

// Close releases resources held by the wrapped embedder.
func (r *Retrying) Close() error {
	return r.inner.Close()
}

var _ Embedder = (*Retrying)(nil)
