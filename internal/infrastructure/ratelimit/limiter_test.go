package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, limit int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, limit, time.Minute), mr
}

func TestTryAdmit_CeilingBoundary(t *testing.T) {
	limiter, _ := setupLimiter(t, 20)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		admitted, err := limiter.TryAdmit(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, admitted, "request %d should be admitted", i+1)
	}

	// 21st within the window is rejected.
	admitted, err := limiter.TryAdmit(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, admitted)
}

func TestTryAdmit_RejectionDoesNotMutate(t *testing.T) {
	limiter, _ := setupLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		admitted, err := limiter.TryAdmit(ctx, "bob")
		require.NoError(t, err)
		require.True(t, admitted)
	}

	for i := 0; i < 5; i++ {
		admitted, err := limiter.TryAdmit(ctx, "bob")
		require.NoError(t, err)
		assert.False(t, admitted)
	}

	remaining, err := limiter.Remaining(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestTryAdmit_WindowResets(t *testing.T) {
	limiter, mr := setupLimiter(t, 3)
	ctx := context.Background()

	base := time.Now()
	limiter.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		admitted, err := limiter.TryAdmit(ctx, "carol")
		require.NoError(t, err)
		require.True(t, admitted)
	}
	admitted, err := limiter.TryAdmit(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, admitted)

	// After 61 seconds of inactivity the window fully resets.
	limiter.now = func() time.Time { return base.Add(61 * time.Second) }
	mr.FastForward(61 * time.Second)

	remaining, err := limiter.Remaining(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	admitted, err = limiter.TryAdmit(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, admitted)
}

func TestTryAdmit_SlidingWindow(t *testing.T) {
	limiter, _ := setupLimiter(t, 3)
	ctx := context.Background()

	base := time.Now()

	// Two requests early in the window, one late.
	limiter.now = func() time.Time { return base }
	for i := 0; i < 2; i++ {
		admitted, err := limiter.TryAdmit(ctx, "dan")
		require.NoError(t, err)
		require.True(t, admitted)
	}
	limiter.now = func() time.Time { return base.Add(50 * time.Second) }
	admitted, err := limiter.TryAdmit(ctx, "dan")
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, err = limiter.TryAdmit(ctx, "dan")
	require.NoError(t, err)
	assert.False(t, admitted)

	// 65s in: the first two have aged out, the late one still counts.
	limiter.now = func() time.Time { return base.Add(65 * time.Second) }
	remaining, err := limiter.Remaining(ctx, "dan")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestRemaining_UnknownOwner(t *testing.T) {
	limiter, _ := setupLimiter(t, 20)

	remaining, err := limiter.Remaining(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 20, remaining)
}

func TestOwnersAreIsolated(t *testing.T) {
	limiter, _ := setupLimiter(t, 1)
	ctx := context.Background()

	admitted, err := limiter.TryAdmit(ctx, "erin")
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, err = limiter.TryAdmit(ctx, "erin")
	require.NoError(t, err)
	assert.False(t, admitted)

	admitted, err = limiter.TryAdmit(ctx, "frank")
	require.NoError(t, err)
	assert.True(t, admitted)
}
