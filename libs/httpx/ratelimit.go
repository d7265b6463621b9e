package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// ClientIP is the default key: the first X-Forwarded-For hop, else the remote host.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// HeaderOrIP keys on a header set by an earlier trusted middleware and falls back to ClientIP.
func HeaderOrIP(header string) KeyFunc {
	return func(r *http.Request) string {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return header + ":" + v
		}
		return "ip:" + ClientIP(r)
	}
}

func tooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// RateLimiter is a per-process fixed-window limiter for single-instance deployments.
type RateLimiter struct {
	limit    int
	window   time.Duration
	key      KeyFunc
	now      func() time.Time
	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	count     int
	resetTime time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		key:      ClientIP,
		now:      time.Now,
		visitors: map[string]*visitor{},
	}
}

// WithKey replaces the bucket key function.
func (rl *RateLimiter) WithKey(fn KeyFunc) *RateLimiter {
	if fn != nil {
		rl.key = fn
	}
	return rl
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, retry := rl.allow(rl.key(r)); !ok {
				tooManyRequests(w, retry)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if len(rl.visitors) > maxTrackedVisitors {
		rl.evictExpired(now)
	}
	v := rl.visitors[key]
	if v == nil || now.After(v.resetTime) {
		rl.visitors[key] = &visitor{count: 1, resetTime: now.Add(rl.window)}
		return true, 0
	}
	if v.count >= rl.limit {
		return false, v.resetTime.Sub(now)
	}
	v.count++
	return true, 0
}

const maxTrackedVisitors = 10000

func (rl *RateLimiter) evictExpired(now time.Time) {
	for key, v := range rl.visitors {
		if now.After(v.resetTime) {
			delete(rl.visitors, key)
		}
	}
}
