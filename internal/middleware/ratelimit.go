package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/matchpoint/internal/handlers"
)

// WindowCounter counts hits on a key inside a fixed window.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter is a WindowCounter backed by INCR with an expiry.
type RedisCounter struct {
	client redis.Cmdable
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// KeyByIP buckets requests by client address.
func KeyByIP(r *http.Request) string {
	return GetClientIP(r)
}

// KeyByUser buckets requests by the authenticated user, falling back to
// the client address for anonymous requests.
func KeyByUser(r *http.Request) string {
	if user := handlers.GetUserFromContext(r.Context()); user != nil {
		return "user:" + user.ID.String()
	}
	return "ip:" + GetClientIP(r)
}

type RateLimiter struct {
	counter  WindowCounter
	limit    int64
	window   time.Duration
	prefix   string
	keyFunc  KeyFunc
	failOpen bool
	now      func() time.Time
}

// NewRateLimiter builds a fixed-window limiter. With failOpen set, requests
// pass when the counter is unavailable.
func NewRateLimiter(counter WindowCounter, limit int64, window time.Duration, prefix string, keyFunc KeyFunc, failOpen bool) *RateLimiter {
	if keyFunc == nil {
		keyFunc = KeyByIP
	}
	return &RateLimiter{
		counter:  counter,
		limit:    limit,
		window:   window,
		prefix:   prefix,
		keyFunc:  keyFunc,
		failOpen: failOpen,
		now:      time.Now,
	}
}

// NewAuthRateLimiter guards login and registration against guessing.
func NewAuthRateLimiter(counter WindowCounter) *RateLimiter {
	return NewRateLimiter(counter, 10, time.Minute, "ratelimit:auth:", KeyByIP, true)
}

// NewFriendRequestRateLimiter caps how many friend requests one user can
// send per hour.
func NewFriendRequestRateLimiter(counter WindowCounter, perHour int64) *RateLimiter {
	return NewRateLimiter(counter, perHour, time.Hour, "ratelimit:friend_requests:", KeyByUser, true)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.counter == nil {
			rl.unavailable(w, r, next)
			return
		}

		now := rl.now()
		windowStart := now.Truncate(rl.window)
		resetAt := windowStart.Add(rl.window).Unix()
		key := fmt.Sprintf("%s%s:%d", rl.prefix, rl.keyFunc(r), windowStart.Unix())

		count, err := rl.counter.Incr(r.Context(), key, rl.window)
		if err != nil {
			log.WithError(err).Warn("Rate limiter unavailable", map[string]interface{}{"prefix": rl.prefix})
			rl.unavailable(w, r, next)
			return
		}

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt))

		if count > rl.limit {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", resetAt-now.Unix()))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) unavailable(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if rl.failOpen {
		next.ServeHTTP(w, r)
		return
	}
	writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
}

// GetClientIP returns the first forwarded address, then X-Real-IP, then
// the connection's remote address.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if host, _, err := net.SplitHostPort(first); err == nil {
			return host
		}
		return first
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
