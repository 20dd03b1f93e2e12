// Package ratelimit provides Redis-backed (GCRA) rate limiting with an in-process fallback
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	// Allow checks if the request is allowed for the given key and limit
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit defines the rate limit rule
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter implements RateLimiter using Redis
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
}

// NewRedisRateLimiter creates a new RedisRateLimiter
func NewRedisRateLimiter(rdb redis.UniversalClient) *RedisRateLimiter {
	return &RedisRateLimiter{limiter: redis_rate.NewLimiter(rdb)}
}

// Allow checks if the request is allowed
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}

// LocalRateLimiter keeps one x/time/rate limiter per key in process memory.
// Keys idle for longer than idleTTL are evicted.
type LocalRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localEntry
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalRateLimiter creates an in-process limiter; idleTTL <= 0 defaults to 10 minutes
func NewLocalRateLimiter(idleTTL time.Duration) *LocalRateLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &LocalRateLimiter{limiters: make(map[string]*localEntry), idleTTL: idleTTL, now: time.Now}
}

// Allow takes one token from the key's limiter
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid limit: rate=%d period=%s", limit.Rate, limit.Period)
	}
	every := rate.Limit(float64(limit.Rate) / limit.Period.Seconds())
	burst := max(limit.Burst, 1)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	e, ok := l.limiters[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(every, burst)}
		l.limiters[key] = e
	} else if e.limiter.Limit() != every || e.limiter.Burst() != burst {
		e.limiter.SetLimitAt(now, every)
		e.limiter.SetBurstAt(now, burst)
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
	}
	tokens := e.limiter.TokensAt(now)
	res := &Result{
		Allowed:    delay == 0,
		Remaining:  max(int(tokens), 0),
		ResetAfter: time.Duration((float64(burst) - tokens) / float64(every) * float64(time.Second)),
	}
	if !res.Allowed {
		res.RetryAfter = delay
	}
	return res, nil
}

// Len number of tracked keys
func (l *LocalRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *LocalRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) >= l.idleTTL {
			delete(l.limiters, key)
		}
	}
}

// FallbackRateLimiter uses primary and switches to fallback when primary errors
type FallbackRateLimiter struct {
	primary  RateLimiter
	fallback RateLimiter
}

// NewFallbackRateLimiter creates a limiter that degrades to fallback on backend errors
func NewFallbackRateLimiter(primary, fallback RateLimiter) *FallbackRateLimiter {
	return &FallbackRateLimiter{primary: primary, fallback: fallback}
}

// Allow implements RateLimiter
func (f *FallbackRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := f.primary.Allow(ctx, key, limit)
	if err == nil {
		return res, nil
	}
	res, ferr := f.fallback.Allow(ctx, key, limit)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	return res, nil
}
