package invoke

import (
	"context"
	"sync"
	"time"
)

// bucket tracks token state for a single endpoint key.
type bucket struct {
	tokens     float64
	lastAccess time.Time
}

// Limiter is a token-bucket rate limiter keyed by endpoint. Wait
// blocks until a token is available or the context is cancelled. A
// nil *Limiter is valid and never blocks.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64 // bucket capacity

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// NewLimiter creates a limiter allowing rps requests per second with
// the given burst capacity. Stale buckets are evicted periodically
// until Close is called.
func NewLimiter(rps float64, burst int) *Limiter {
	l := &Limiter{
		buckets:         make(map[string]*bucket),
		rate:            rps,
		burst:           float64(burst),
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Wait blocks until a token is available for key, the context is
// cancelled, or the limiter is nil (no limiting).
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	for {
		ok, delay := l.take(key)
		if ok {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// take refills the bucket for key and claims a token if one is
// available. When the bucket is empty it reports the wait until the
// next token accrues.
func (l *Limiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastAccess: now}
		l.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastAccess).Seconds()
		b.tokens += elapsed * l.rate
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.lastAccess = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return false, wait
}

// cleanup evicts buckets idle long enough to have fully refilled.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictStale()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) evictStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-2 * l.cleanupInterval)
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *Limiter) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		close(l.stopCleanup)
	})
}
