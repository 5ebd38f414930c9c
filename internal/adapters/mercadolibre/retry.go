package mercadolibre

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// RetryPolicy parameterizes every remote call. A nil delay function disables
// retries for that class of failure.
type RetryPolicy struct {
	MaxAttempts    int
	RateLimitDelay func(attempt int) time.Duration
	TransientDelay func(attempt int) time.Duration
}

// ExponentialDelay returns base, 2*base, 4*base, ...
func ExponentialDelay(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			return 0
		}
		return base << attempt
	}
}

// LinearDelay returns step, 2*step, 3*step, ...
func LinearDelay(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			return 0
		}
		return step * time.Duration(attempt+1)
	}
}

func FixedDelay(delay time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return delay }
}

// SingleAttempt never retries.
var SingleAttempt = RetryPolicy{MaxAttempts: 1}

// DetailPolicy backs off 2^attempt seconds on 429 and waits a fixed delay
// after timeouts, up to retries extra attempts.
func DetailPolicy(retries int, timeoutDelay time.Duration) RetryPolicy {
	if retries < 0 {
		retries = 0
	}
	return RetryPolicy{
		MaxAttempts:    retries + 1,
		RateLimitDelay: ExponentialDelay(time.Second),
		TransientDelay: FixedDelay(timeoutDelay),
	}
}

// UpdatePolicy retries 429 with 2s, 4s, ... between attempts.
func UpdatePolicy(attempts int) RetryPolicy {
	if attempts <= 0 {
		attempts = 1
	}
	return RetryPolicy{
		MaxAttempts:    attempts,
		RateLimitDelay: LinearDelay(2 * time.Second),
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func isTransientError(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
