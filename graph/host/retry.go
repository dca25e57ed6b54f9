package host

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy configures automatic retries of a failing activity.
//
// The delay before retry n (zero based) is
//
//	min(BaseDelay * 2^n, MaxDelay) + jitter(0, BaseDelay)
type RetryPolicy struct {
	// MaxAttempts counts the initial attempt; 1 means no retries.
	MaxAttempts int

	BaseDelay time.Duration

	// MaxDelay caps the exponential part. Zero means no cap.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth retrying. A nil
	// Retryable retries every error.
	Retryable func(error) bool
}

// Validate checks the policy:
//   - MaxAttempts must be >= 1
//   - MaxDelay, when set, must be >= BaseDelay
func (p *RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return ErrInvalidRetryPolicy
	}
	if p.MaxDelay > 0 && p.BaseDelay > 0 && p.MaxDelay < p.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

func (p *RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// computeBackoff returns the delay before retry attempt (zero based).
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	delay := base * (1 << attempt)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter for retry timing, not security
	}
	return delay + jitter
}

// sleep waits for d or until ctx is done.
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
