package core

import (
	"context"
	"math"
	"time"
)

// RetryPolicy retries transient failures a fixed number of times.
// MaxAttempts counts the first call; Multiplier > 1 turns the fixed delay into exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
	Retryable   func(error) bool
	// OnRetry is called before each wait, if set
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetryPolicy makes two attempts ten seconds apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Delay: 10 * time.Second, Multiplier: 1}
}

// Do runs fn until it succeeds, fails permanently, runs out of attempts or ctx ends
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = Transient
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || attempt == attempts || !retryable(err) {
			return err
		}

		wait := p.wait(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return err
}

func (p RetryPolicy) wait(attempt int) time.Duration {
	if p.Multiplier <= 1 {
		return p.Delay
	}
	return time.Duration(float64(p.Delay) * math.Pow(p.Multiplier, float64(attempt-1)))
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
