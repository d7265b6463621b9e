package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter shares fixed-window counters between API replicas.
type RedisRateLimiter struct {
	rdb    redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	key    KeyFunc
}

// The script returns the count and the window's remaining TTL in milliseconds.
var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

func NewRedisRateLimiter(rdb redis.UniversalClient, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix, key: ClientIP}
}

func (rl *RedisRateLimiter) WithKey(fn KeyFunc) *RedisRateLimiter {
	if fn != nil {
		rl.key = fn
	}
	return rl
}

// Middleware lets requests through when Redis is unreachable and failOpen is set.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, ttl, err := rl.Hit(r.Context(), rl.key(r))
			if err != nil {
				if logger != nil {
					logger.Warn("redis rate limiter error", "err", err)
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}
			if count > int64(rl.limit) {
				tooManyRequests(w, ttl)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Hit counts one request for key and returns the running count and time left in the window.
func (rl *RedisRateLimiter) Hit(ctx context.Context, key string) (int64, time.Duration, error) {
	res, err := redisFixedWindowScript.Run(ctx, rl.rdb, []string{rl.prefix + ":" + key}, rl.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis script result %v", res)
	}
	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		ttl = rl.window
	}
	return res[0], ttl, nil
}
