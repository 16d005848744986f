package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionMessage = "message"
	ActionTyping  = "typing"
	ActionHTTP    = "http"
)

// Policy is a per-minute budget with a burst allowance.
type Policy struct {
	PerMinute int
	Burst     int
}

func (p Policy) limit() rate.Limit {
	if p.PerMinute <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(p.PerMinute))
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key and action.
type RateLimiter struct {
	mutex    sync.Mutex
	policies map[string]Policy
	fallback Policy
	buckets  map[string]*entry
}

func NewRateLimiter(policies map[string]Policy) *RateLimiter {
	return &RateLimiter{
		policies: policies,
		fallback: Policy{PerMinute: 20, Burst: 5},
		buckets:  make(map[string]*entry),
	}
}

func (rl *RateLimiter) limiterFor(key, action string) *rate.Limiter {
	k := key + ":" + action

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if e, ok := rl.buckets[k]; ok {
		e.lastSeen = time.Now()
		return e.limiter
	}

	p, ok := rl.policies[action]
	if !ok {
		p = rl.fallback
	}
	burst := p.Burst
	if burst < 1 {
		burst = 1
	}
	e := &entry{limiter: rate.NewLimiter(p.limit(), burst), lastSeen: time.Now()}
	rl.buckets[k] = e
	return e.limiter
}

// Allow consumes a token for key/action. When none is available it reports
// how long until one would be.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	r := rl.limiterFor(key, action).Reserve()
	if !r.OK() {
		return false, 0
	}
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d
	}
	return true, 0
}

// Forget drops every bucket held for key.
func (rl *RateLimiter) Forget(key string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	prefix := key + ":"
	for k := range rl.buckets {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(rl.buckets, k)
		}
	}
}

// Cleanup removes buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for k, e := range rl.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.buckets)
}

// StartCleanupRoutine prunes idle buckets until ctx is done.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup(10 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()
}
