package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"blog-backend/internal/observability"
)

// RateLimiter is a sliding-window per-IP limiter for the unauthenticated
// credential endpoints (login, password reset). State is in-memory only;
// session state itself lives in the store, so losing limiter state on restart
// costs nothing but a few extra attempts.
type RateLimiter struct {
	mu         sync.Mutex
	maxHits    int
	window     time.Duration
	hitsByIP   map[string][]time.Time
	maxTracked int
}

func NewRateLimiter(maxHits int, window time.Duration) *RateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &RateLimiter{
		maxHits:    maxHits,
		window:     window,
		hitsByIP:   make(map[string][]time.Time),
		maxTracked: 5000,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(observability.ClientIP(r), time.Now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hitsByIP[ip]
	fresh := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			fresh = append(fresh, hit)
		}
	}

	if len(fresh) >= l.maxHits {
		retryAfter := fresh[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.hitsByIP[ip] = fresh
		return false, retryAfter
	}

	fresh = append(fresh, now)
	l.hitsByIP[ip] = fresh

	// Bounded memory: evict addresses whose whole window has already passed.
	if len(l.hitsByIP) > l.maxTracked {
		for key, value := range l.hitsByIP {
			if len(value) == 0 || value[len(value)-1].Before(threshold) {
				delete(l.hitsByIP, key)
			}
		}
	}

	return true, 0
}
