package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketLimiter_AllowsBurstThenBlocks(t *testing.T) {
	l := NewTokenBucketLimiter(1, 2)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.Greater(t, time.Since(start), 100*time.Millisecond)
}

func TestTokenBucketLimiter_RespectsCancellation(t *testing.T) {
	l := NewTokenBucketLimiter(0.001, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.Error(t, err)
}

func TestHTTPTransport_SetRateLimiter_UsesLimiter(t *testing.T) {
	ht := NewHTTPTransport(nil, nil)
	limiter := NewTokenBucketLimiter(1000, 1)
	ht.SetRateLimiter(limiter)
	assert.NotNil(t, ht.limiter)
}
