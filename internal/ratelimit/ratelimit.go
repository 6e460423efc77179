// Package ratelimit throttles public form submissions per client.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/crexpressinc/formsgate/internal/config"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time // when the next slot frees up
}

// RetryAfter is the time until Reset, at least one second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.Reset.Sub(now).Round(time.Second)
	if d < time.Second {
		return time.Second
	}
	return d
}

// Limiter is a sliding-window limiter keyed by client identifier.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// New returns a redis limiter when REDIS_URL is set and an in-memory one
// otherwise. The returned close func releases the redis client.
func New(ctx context.Context, cfg config.RateLimitConfig, log zerolog.Logger) (Limiter, func() error, error) {
	if cfg.RedisURL == "" {
		log.Warn().Msg("⚠️ Using in-memory rate limiting (REDIS_URL not set)")
		return NewMemoryLimiter(cfg.MaxRequests, cfg.Window), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Msg("✅ Using Redis for rate limiting")
	return NewRedisLimiter(client, cfg.MaxRequests, cfg.Window), client.Close, nil
}

// MemoryLimiter keeps request timestamps in process memory.
type MemoryLimiter struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter creates a MemoryLimiter. A max below one is treated as one.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:    atLeastOne(max),
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a request for key when there is room in the window.
func (m *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	valid := m.prune(key, now)
	if len(valid) >= m.max {
		m.hits[key] = valid
		return Result{Allowed: false, Remaining: 0, Reset: valid[0].Add(m.window)}, nil
	}

	valid = append(valid, now)
	m.hits[key] = valid
	return Result{Allowed: true, Remaining: m.max - len(valid), Reset: now.Add(m.window)}, nil
}

// prune drops timestamps of key that left the window. Keys with nothing left
// are removed from the map.
func (m *MemoryLimiter) prune(key string, now time.Time) []time.Time {
	hits := m.hits[key]
	valid := hits[:0]
	for _, ts := range hits {
		if now.Sub(ts) < m.window {
			valid = append(valid, ts)
		}
	}
	if len(valid) == 0 {
		delete(m.hits, key)
		return nil
	}
	return valid
}

// sweep prunes every key at most once per window so clients that never come
// back do not stay in memory.
func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.window {
		return
	}
	m.lastSweep = now
	for key := range m.hits {
		if valid := m.prune(key, now); valid != nil {
			m.hits[key] = valid
		}
	}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// slidingWindow trims, counts and conditionally records a request in one
// round trip. It returns {allowed, count, oldest score}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
if count >= tonumber(ARGV[3]) then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local score = 0
	if oldest[2] then
		score = tonumber(oldest[2])
	end
	return {0, count, score}
end
redis.call('ZADD', key, ARGV[1], ARGV[4])
redis.call('PEXPIRE', key, ARGV[5])
return {1, count + 1, tonumber(ARGV[1])}
`)

// RedisLimiter keeps one sorted set of request timestamps per key.
type RedisLimiter struct {
	client redis.Cmdable
	max    int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a RedisLimiter over an existing client. A max below
// one is treated as one.
func NewRedisLimiter(client redis.Cmdable, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		max:    atLeastOne(max),
		window: window,
		prefix: "ratelimit:forms:",
		now:    time.Now,
	}
}

// Allow records a request for key when there is room in the window. The
// check and the insert run as one script so concurrent callers cannot push
// the count past max.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := r.now()
	nowMs := now.UnixMilli()
	windowMs := r.window.Milliseconds()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	vals, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		nowMs, nowMs-windowMs, r.max, member, windowMs).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit: unexpected reply %v", vals)
	}

	if vals[0] == 0 {
		reset := now.Add(r.window)
		if vals[2] > 0 {
			reset = time.UnixMilli(vals[2] + windowMs)
		}
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	return Result{
		Allowed:   true,
		Remaining: r.max - int(vals[1]),
		Reset:     now.Add(r.window),
	}, nil
}
