package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crexpressinc/formsgate/internal/config"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newRedisLimiter(t *testing.T, max int, window time.Duration) (*RedisLimiter, *clock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	l := NewRedisLimiter(client, max, window)
	l.now = c.now
	return l, c, mr
}

func newMemoryLimiter(max int, window time.Duration) (*MemoryLimiter, *clock) {
	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(max, window)
	l.now = c.now
	return l, c
}

// exercise runs the same sliding window scenario against any backend.
func exercise(t *testing.T, l Limiter, c *clock) {
	ctx := context.Background()
	start := c.t

	for i := 0; i < 5; i++ {
		res, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 4-i, res.Remaining)
		c.t = c.t.Add(time.Minute)
	}

	res, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.True(t, start.Add(time.Hour).Equal(res.Reset), "reset %v", res.Reset)

	// Other clients are unaffected
	res, err = l.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// The first request leaves the window
	c.t = start.Add(time.Hour + time.Second)
	res, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter(t *testing.T) {
	l, c := newMemoryLimiter(5, time.Hour)
	exercise(t, l, c)
}

func TestRedisLimiter(t *testing.T) {
	l, c, mr := newRedisLimiter(t, 5, time.Hour)
	exercise(t, l, c)
	assert.True(t, mr.Exists("ratelimit:forms:203.0.113.7"))
}

func TestRedisLimiterConcurrent(t *testing.T) {
	l, _, mr := newRedisLimiter(t, 5, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(ctx, "203.0.113.7")
			if err != nil || !res.Allowed {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)
	members, err := mr.ZMembers("ratelimit:forms:203.0.113.7")
	require.NoError(t, err)
	assert.Len(t, members, 5)
}

func TestLimiterNonPositiveMax(t *testing.T) {
	mem, mc := newMemoryLimiter(0, time.Hour)
	red, rc, _ := newRedisLimiter(t, -3, time.Hour)

	for name, tc := range map[string]struct {
		l Limiter
		c *clock
	}{"memory": {mem, mc}, "redis": {red, rc}} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			res, err := tc.l.Allow(ctx, "k")
			require.NoError(t, err)
			assert.True(t, res.Allowed)

			res, err = tc.l.Allow(ctx, "k")
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.True(t, tc.c.t.Add(time.Hour).Equal(res.Reset))
		})
	}
}

func TestMemoryLimiterDropsIdleKeys(t *testing.T) {
	l, c := newMemoryLimiter(5, time.Hour)
	ctx := context.Background()

	for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		_, err := l.Allow(ctx, ip)
		require.NoError(t, err)
	}
	assert.Len(t, l.hits, 3)

	c.t = c.t.Add(2 * time.Hour)
	_, err := l.Allow(ctx, "198.51.100.9")
	require.NoError(t, err)
	assert.Len(t, l.hits, 1)
	assert.Contains(t, l.hits, "198.51.100.9")
}

func TestRedisLimiterUnavailable(t *testing.T) {
	l, _, mr := newRedisLimiter(t, 5, time.Hour)
	mr.Close()

	_, err := l.Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	l, closeFn, err := New(ctx, config.RateLimitConfig{MaxRequests: 5, Window: time.Hour}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryLimiter{}, l)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	l, closeFn, err = New(ctx, config.RateLimitConfig{RedisURL: "redis://" + mr.Addr(), MaxRequests: 5, Window: time.Hour}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &RedisLimiter{}, l)
	assert.NoError(t, closeFn())

	_, _, err = New(ctx, config.RateLimitConfig{RedisURL: "://bad"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRetryAfter(t *testing.T) {
	now := time.Now()
	assert.Equal(t, time.Second, Result{Reset: now}.RetryAfter(now))
	assert.Equal(t, 90*time.Second, Result{Reset: now.Add(90 * time.Second)}.RetryAfter(now))
}
