// Package ratelimit provides a keyed token-bucket limiter.
//
// The fetcher keys it by host so every session talking to the same remote
// server shares one budget.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Keyed hands out one independent limiter per key.
type Keyed struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a keyed limiter allowing rps requests per second per key.
// A non-positive rps means unlimited.
func New(rps float64, burst int) *Keyed {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Keyed{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether a request for key may proceed now.
func (k *Keyed) Allow(key string) bool {
	return k.limiter(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is done.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	return k.limiter(key).Wait(ctx)
}

// SetLimit overrides the rate for a single key.
func (k *Keyed) SetLimit(key string, rps float64, burst int) {
	l := k.limiter(key)
	if rps <= 0 {
		l.SetLimit(rate.Inf)
	} else {
		l.SetLimit(rate.Limit(rps))
	}
	if burst > 0 {
		l.SetBurst(burst)
	}
}

func (k *Keyed) limiter(key string) *rate.Limiter {
	k.mu.RLock()
	l, ok := k.limiters[key]
	k.mu.RUnlock()
	if ok {
		return l
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if l, ok = k.limiters[key]; ok {
		return l
	}
	l = rate.NewLimiter(k.limit, k.burst)
	k.limiters[key] = l
	return l
}
