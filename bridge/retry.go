package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls how remote message pushes are retried. It is
// applied explicitly at the call site rather than baked into the client.
type RetryPolicy struct {
	Attempts       int // total attempts, including the first
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64

	// sleep overrides the backoff wait, for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the push retry defaults: three attempts
// with 0.5s backoff doubling between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Do runs fn until it succeeds, attempts are exhausted, or the context
// ends. Context cancellation is never retried.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		if err := p.wait(ctx, p.backoff(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("max attempts (%d) exceeded: %w", attempts, lastErr)
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// backoff calculates the delay before the next attempt using
// exponential backoff with optional jitter.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := float64(p.InitialBackoff) * math.Pow(2, float64(attempt))
	if p.MaxBackoff > 0 && base > float64(p.MaxBackoff) {
		base = float64(p.MaxBackoff)
	}

	jitter := base * p.JitterFraction * (rand.Float64()*2 - 1) // ±jitter
	delay := time.Duration(base + jitter)
	if delay < 0 {
		delay = 0
	}
	return delay
}
