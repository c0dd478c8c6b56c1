package ratelimit

import (
	"sync"
	"time"
)

// Buckets idle longer than this are forgotten; a fresh bucket starts full, so
// forgetting an idle one loses nothing.
const idleAfter = 10 * time.Minute

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a keyed token-bucket limiter.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	sweep   time.Time
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket), sweep: time.Now()}
}

// Allow reports whether one token can be consumed for key. Unknown keys get
// a full bucket with the given capacity and refill rate.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.sweep) > idleAfter {
		l.prune(now)
		l.sweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.last) > idleAfter {
			delete(l.buckets, key)
		}
	}
}
