// Package ratelimit bounds the push signal delivery rate per asset with
// token buckets, so one noisy symbol cannot flood the feed pipeline.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter keeps one token bucket per asset symbol. Buckets are created
// lazily on first sight of a symbol and start full, so a burst up to
// capacity passes before throttling kicks in.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func New() *Limiter { return &Limiter{buckets: make(map[string]*bucket)} }

// Allow consumes one token from the symbol's bucket if available. A false
// return means the signal should be dropped, not queued.
func (l *Limiter) Allow(symbol string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[symbol]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.buckets[symbol] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
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
