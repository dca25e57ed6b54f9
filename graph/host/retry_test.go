package host

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{"single attempt", RetryPolicy{MaxAttempts: 1}, false},
		{"with delays", RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second}, false},
		{"zero attempts", RetryPolicy{MaxAttempts: 0}, true},
		{"max below base", RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Millisecond}, true},
		{"negative base", RetryPolicy{MaxAttempts: 3, BaseDelay: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRetryPolicy)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestComputeBackoff(t *testing.T) {
	base := 10 * time.Millisecond
	maxDelay := 50 * time.Millisecond
	rng := rand.New(rand.NewSource(1))

	for attempt := 0; attempt < 8; attempt++ {
		exp := base * (1 << attempt)
		if exp > maxDelay {
			exp = maxDelay
		}
		got := computeBackoff(attempt, base, maxDelay, rng)
		assert.GreaterOrEqual(t, got, exp, "attempt %d", attempt)
		assert.Less(t, got, exp+base, "attempt %d", attempt)
	}

	assert.Zero(t, computeBackoff(3, 0, maxDelay, rng))
}

func TestSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
