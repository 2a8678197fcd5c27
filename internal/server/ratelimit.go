package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

// ipLimiter keeps one token bucket per client address. A bucket holds count tokens
// and refills count per window.
type ipLimiter struct {
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
}

type bucket struct {
	lastSeen time.Time
	limiter  *rate.Limiter
}

// newIPLimiter returns nil when count or window is not positive, which disables limiting.
func newIPLimiter(count int, window time.Duration) *ipLimiter {
	if count <= 0 || window <= 0 {
		return nil
	}

	return &ipLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(count) / window.Seconds()),
		burst:   count,
	}
}

// allow takes one token from the bucket of ip.
func (l *ipLimiter) allow(ip string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// sweep forgets buckets idle since before now minus limiterIdleAfter and returns how many remain.
func (l *ipLimiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > limiterIdleAfter {
			delete(l.buckets, ip)
		}
	}

	return len(l.buckets)
}

// janitor sweeps periodically until stop is closed.
func (l *ipLimiter) janitor(stop <-chan struct{}) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}
