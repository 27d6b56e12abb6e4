package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaflowhq/ideaflow/pkg/ratelimit"
)

func newMemoryStore(t *testing.T) *ratelimit.MemoryStore {
	t.Helper()
	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSlidingWindow_AllowsUpToLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := ratelimit.NewAuthLimiter(newMemoryStore(t))

	for i := range 5 {
		limited, err := limiter.IsRateLimited(ctx, "a@example.com")
		require.NoError(t, err)
		assert.False(t, limited, "attempt %d should pass", i+1)
	}

	limited, err := limiter.IsRateLimited(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, limited, "sixth attempt should be limited")

	remaining, err := limiter.RemainingTime(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Positive(t, remaining)
	assert.LessOrEqual(t, remaining, 5*time.Minute)
}

func TestSlidingWindow_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := ratelimit.NewResetLimiter(newMemoryStore(t))

	for range 3 {
		limited, err := limiter.IsRateLimited(ctx, "a@example.com")
		require.NoError(t, err)
		require.False(t, limited)
	}

	limited, err := limiter.IsRateLimited(ctx, "b@example.com")
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestSlidingWindow_OldAttemptsExpire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	limiter, err := ratelimit.NewSlidingWindow(newMemoryStore(t), 2, time.Minute, ratelimit.WithClock(clock))
	require.NoError(t, err)

	for range 2 {
		limited, err := limiter.IsRateLimited(ctx, "key")
		require.NoError(t, err)
		require.False(t, limited)
	}

	limited, err := limiter.IsRateLimited(ctx, "key")
	require.NoError(t, err)
	require.True(t, limited)

	// Move past the window: the slate is clean again.
	current = current.Add(61 * time.Second)

	limited, err = limiter.IsRateLimited(ctx, "key")
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestSlidingWindow_LimitedCallDoesNotRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	limiter, err := ratelimit.NewSlidingWindow(newMemoryStore(t), 1, time.Minute, ratelimit.WithClock(clock))
	require.NoError(t, err)

	limited, err := limiter.IsRateLimited(ctx, "key")
	require.NoError(t, err)
	require.False(t, limited)

	// Hammer the limiter while limited; none of these may extend the window.
	for range 5 {
		current = current.Add(time.Second)
		limited, err = limiter.IsRateLimited(ctx, "key")
		require.NoError(t, err)
		require.True(t, limited)
	}

	// 61s after the only recorded attempt the key is free again.
	current = time.Date(2025, 6, 1, 12, 1, 1, 0, time.UTC)
	limited, err = limiter.IsRateLimited(ctx, "key")
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestSlidingWindow_RemainingTimeWithFixedClock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	limiter, err := ratelimit.NewSlidingWindow(newMemoryStore(t), 1, time.Minute, ratelimit.WithClock(clock))
	require.NoError(t, err)

	limited, err := limiter.IsRateLimited(ctx, "key")
	require.NoError(t, err)
	require.False(t, limited)

	// The store prunes against the limiter's clock, so the recorded attempt
	// is still live and the remainder is exact.
	current = current.Add(15 * time.Second)

	remaining, err := limiter.RemainingTime(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, remaining)
}

func TestSlidingWindow_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := ratelimit.NewSlidingWindow(newMemoryStore(t), 1, time.Hour)
	require.NoError(t, err)

	limited, err := limiter.IsRateLimited(ctx, "key")
	require.NoError(t, err)
	require.False(t, limited)

	limited, err = limiter.IsRateLimited(ctx, "key")
	require.NoError(t, err)
	require.True(t, limited)

	require.NoError(t, limiter.Reset(ctx, "key"))

	limited, err = limiter.IsRateLimited(ctx, "key")
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestSlidingWindow_ConcurrentAttemptsRespectLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := ratelimit.NewSlidingWindow(newMemoryStore(t), 10, time.Hour)
	require.NoError(t, err)

	const attempts = 100

	var passed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(attempts)
	for range attempts {
		go func() {
			defer wg.Done()
			limited, err := limiter.IsRateLimited(ctx, "key")
			if err == nil && !limited {
				passed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), passed.Load())
}

func TestNewSlidingWindow_Validation(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(t)

	_, err := ratelimit.NewSlidingWindow(nil, 5, time.Minute)
	assert.ErrorIs(t, err, ratelimit.ErrStoreRequired)

	_, err = ratelimit.NewSlidingWindow(store, 0, time.Minute)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidLimit)

	_, err = ratelimit.NewSlidingWindow(store, 5, 0)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidWindow)
}

func TestSlidingWindow_EmptyKey(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewAuthLimiter(newMemoryStore(t))

	_, err := limiter.IsRateLimited(context.Background(), "")
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
}
