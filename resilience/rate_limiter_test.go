package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 10, Burst: 3})

	for i := range 3 {
		assert.True(t, rl.Allow(), "request %d should be allowed", i)
	}
	assert.False(t, rl.Allow(), "request over burst should be rejected")
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 100, Burst: 1})
	require.True(t, rl.Allow())
	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.Allow(), "request after refill should be allowed")
}

func TestRateLimiter_WaitPaces(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 50, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		require.NoError(t, rl.Wait(ctx))
	}
	// one token up front, two more at 20ms each
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestRateLimiter_WaitCanceled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 0.1, Burst: 1})
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.DeadlineExceeded)
}

func TestRateLimiter_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		cfg       RateLimiterConfig
		wantRate  float64
		wantBurst int
	}{
		{"zero rate", RateLimiterConfig{}, 1, 1},
		{"burst from rate", RateLimiterConfig{Rate: 5}, 5, 5},
		{"fractional rate", RateLimiterConfig{Rate: 0.5}, 0.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.cfg)
			assert.Equal(t, tt.wantRate, rl.Rate())
			assert.Equal(t, tt.wantBurst, rl.Burst())
			assert.Equal(t, float64(tt.wantBurst), rl.Tokens(), "bucket starts full")
		})
	}
}
