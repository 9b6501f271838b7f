package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"nf-licencas.app/cloud/internal/logger"
)

type RateLimit interface {
	Allow(key string) bool
}

type window struct {
	count int
	start time.Time
}

// FixedWindowLimiter allows maxRequests per key in each window.
type FixedWindowLimiter struct {
	maxRequests int
	length      time.Duration
	windows     map[string]*window
	lastSweep   time.Time
	mutex       sync.Mutex
	now         func() time.Time
}

func New(maxRequests int, length time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		maxRequests: maxRequests,
		length:      length,
		windows:     make(map[string]*window),
		now:         time.Now,
	}
}

func (rl *FixedWindowLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	rl.sweep(now)

	w := rl.windows[key]
	if w == nil || now.Sub(w.start) > rl.length {
		if rl.maxRequests <= 0 {
			return false
		}
		rl.windows[key] = &window{count: 1, start: now}
		return true
	}

	if w.count >= rl.maxRequests {
		return false
	}
	w.count++
	return true
}

// sweep drops finished windows so one-off clients do not accumulate.
func (rl *FixedWindowLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.length {
		return
	}
	for key, w := range rl.windows {
		if now.Sub(w.start) > rl.length {
			delete(rl.windows, key)
		}
	}
	rl.lastSweep = now
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
// Put it behind middleware.RealIP when running behind a proxy.
func Middleware(limiter RateLimit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded", map[string]interface{}{
					"client": key,
					"path":   r.URL.Path,
				})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"detail": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
