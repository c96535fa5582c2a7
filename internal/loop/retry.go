package loop

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls retries of reasoner calls. Tool failures are never
// retried here; they flow back to the reasoner as error results.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool

	// OnRetry, when set, is invoked before each sleep with the attempt
	// number (1-based) and the error that triggered the retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy retries three times with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay computes the backoff delay for a given attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	if p.Jitter {
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d)
}

// retry runs fn until it succeeds, the attempts are exhausted, or the context
// ends. The context error wins over the last fn error so callers can
// distinguish cancellation from provider failure.
func retry[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == policy.MaxRetries {
			break
		}
		delay := policy.Delay(attempt + 1)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err, delay)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}
