package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyed struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per key. Buckets idle for longer than the
// idle window are dropped on the next sweep.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*keyed
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func New() *Limiter {
	return &Limiter{m: make(map[string]*keyed), idle: 10 * time.Minute, now: time.Now}
}

// Allow reports whether one token can be consumed for key. capacity is the
// burst size and refillPerSec the steady rate.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) > l.idle {
		for k, b := range l.m {
			if now.Sub(b.seen) > l.idle {
				delete(l.m, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.m[key]
	if !ok {
		burst := int(capacity)
		if burst < 1 {
			burst = 1
		}
		b = &keyed{lim: rate.NewLimiter(rate.Limit(refillPerSec), burst)}
		l.m[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
