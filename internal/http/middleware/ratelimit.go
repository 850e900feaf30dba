package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"medtrack/internal/telemetry"
)

// RateLimiter is a fixed-window per-IP request counter backed by Redis.
// On Redis failure it fails open: requests pass through unlimited.
type RateLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	log    *logrus.Logger
}

func NewRateLimiter(client *redis.Client, max int, window time.Duration, log *logrus.Logger) *RateLimiter {
	return &RateLimiter{client: client, max: max, window: window, log: log}
}

func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ratelimit:" + clientIP(r)

		n, err := l.client.Incr(r.Context(), key).Result()
		if err != nil {
			l.log.WithError(err).Warn("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if n == 1 {
			// Without the expiry the window never resets and the client
			// stays limited forever.
			if err := l.client.Expire(r.Context(), key, l.window).Err(); err != nil {
				l.log.WithError(err).WithField("key", key).Warn("set rate limit window expiry")
			}
		}

		if n > int64(l.max) {
			telemetry.RateLimitRejects.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"status":"error","message":"Too many requests, please try again later."}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
