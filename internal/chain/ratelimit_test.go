package chain_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/depot/internal/chain"
)

const (
	localRPC  = "http://127.0.0.1:8545"
	remoteRPC = "https://rpc.example.com"
)

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(10, 3)

	allowed := 0
	for range 5 {
		if rl.Allow(localRPC) {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestRateLimiter_BucketPerEndpoint(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(10, 1)

	require.True(t, rl.Allow(localRPC))
	assert.False(t, rl.Allow(localRPC))
	assert.True(t, rl.Allow(remoteRPC), "a drained endpoint must not block another")
}

func TestRateLimiter_WaitPaces(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(100, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, rl.Wait(ctx, localRPC))
	start := time.Now()
	require.NoError(t, rl.Wait(ctx, localRPC))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestRateLimiter_WaitCanceled(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(0.001, 1)
	require.True(t, rl.Allow(localRPC))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, rl.Wait(ctx, localRPC))
}

func TestRateLimiter_ZeroRateIsUnlimited(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(0, 0)
	for range 500 {
		require.True(t, rl.Allow(localRPC))
	}
}

func TestRateLimiter_SharedAcrossGoroutines(t *testing.T) {
	t.Parallel()
	rl := chain.DefaultRateLimiter()

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			assert.NoError(t, rl.Wait(context.Background(), localRPC))
		})
	}
	wg.Wait()
}
