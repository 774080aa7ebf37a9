package source

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds a network call: a politeness jitter before every attempt,
// a per-attempt timeout, and a geometric backoff between failed attempts.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Multiplier     float64
	JitterMin      time.Duration
	JitterMax      time.Duration
	AttemptTimeout time.Duration

	// Sleep and Rand are swapped out in tests.
	Sleep   func(ctx context.Context, d time.Duration) error
	Rand    func() float64
	OnRetry func(attempt int, err error, wait time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      2 * time.Second,
		Multiplier:     1.5,
		JitterMin:      time.Second,
		JitterMax:      3 * time.Second,
		AttemptTimeout: 15 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.JitterMin < 0 {
		p.JitterMin = 0
	}
	if p.JitterMax < p.JitterMin {
		p.JitterMax = p.JitterMin
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Rand == nil {
		p.Rand = rand.Float64
	}
	return p
}

// Backoff is the wait after the failed attempt with the given zero-based index.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(attempt)))
}

func (p RetryPolicy) jitter() time.Duration {
	span := p.JitterMax - p.JitterMin
	if span <= 0 {
		return p.JitterMin
	}
	return p.JitterMin + time.Duration(p.Rand()*float64(span))
}

// Retry runs op until it succeeds or the attempts are exhausted, returning the
// last error in the latter case. Cancelling ctx stops the loop immediately.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	p := policy.normalized()
	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := p.Sleep(ctx, p.jitter()); err != nil {
			return zero, err
		}

		out, err := runAttempt(ctx, p.AttemptTimeout, op)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, wait)
		}
		if err := p.Sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", p.MaxAttempts, lastErr)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
