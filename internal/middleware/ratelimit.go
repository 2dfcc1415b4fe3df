package middleware

import (
	"net/http"
	"sync"
	"time"
)

type bucket struct {
	count       int
	windowStart time.Time
}

// RateLimiter is a fixed-window per-IP limiter sized for the presence
// endpoints, where well-behaved clients send one heartbeat every few seconds
// per joined session.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
	go rl.evictStale()
	return rl
}

// evictStale drops buckets whose window has lapsed so the map stays bounded
// by the set of currently active client IPs.
func (rl *RateLimiter) evictStale() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if time.Since(b.windowStart) > rl.window {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr

		rl.mu.Lock()
		b, ok := rl.buckets[ip]
		if !ok || time.Since(b.windowStart) > rl.window {
			rl.buckets[ip] = &bucket{count: 1, windowStart: time.Now()}
			rl.mu.Unlock()
			next.ServeHTTP(w, r)
			return
		}
		b.count++
		over := b.count > rl.limit
		rl.mu.Unlock()

		if over {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many presence events, slow down", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
