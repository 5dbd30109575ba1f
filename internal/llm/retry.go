package llm

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	backoffBase       = 2 * time.Second
	backoffMultiplier = 2.0
	maxBackoff        = 30 * time.Second
)

// retryClient wraps an LLMClient with exponential backoff. Provider and
// network failures are retried; a done context ends the attempt loop
// immediately since no later attempt can succeed against it.
type retryClient struct {
	inner       LLMClient
	maxAttempts int
	base        time.Duration
	max         time.Duration
}

// WithRetry returns a client that retries Generate up to maxAttempts times.
func WithRetry(client LLMClient, maxAttempts int) LLMClient {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryClient{
		inner:       client,
		maxAttempts: maxAttempts,
		base:        backoffBase,
		max:         maxBackoff,
	}
}

func (r *retryClient) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		resp, err := r.inner.Generate(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		if attempt < r.maxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.backoff(attempt)):
			}
		}
	}
	return "", lastErr
}

// backoff computes the delay before the next attempt. Jitter of +/- 25%
// prevents synchronized retries across concurrent oracle calls.
func (r *retryClient) backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= backoffMultiplier
	}
	d := time.Duration(float64(r.base) * multiplier)
	if d > r.max {
		d = r.max
	}
	jitter := float64(d) * 0.25 * (rand.Float64()*2 - 1)
	return d + time.Duration(jitter)
}
