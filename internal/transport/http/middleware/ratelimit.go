package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/logger"
)

type RateLimiter interface {
	AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (redis.Decision, error)
}

type FixedWindowConfig struct {
	RouteKey string
	Limit    int
	Window   time.Duration
}

// RateLimitFixedWindow limits requests per caller identity. A limiter error lets
// the request through.
func RateLimitFixedWindow(limiter RateLimiter, cfg FixedWindowConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.RouteKey == "" {
		cfg.RouteKey = "unknown"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := redis.Key(cfg.RouteKey, accountOrIP(r))
			dec, err := limiter.AllowFixedWindow(r.Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				logger.WithCtx(r.Context()).Warn().Err(err).Str("route", cfg.RouteKey).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))

			if !dec.Allowed {
				retry := int(dec.RetryAfter.Round(time.Second).Seconds())
				if retry < 1 {
					retry = 1
				}
				writeErr(w, r, domain.WithMeta(domain.ErrRateLimited(cfg.RouteKey), map[string]string{
					"scope":       cfg.RouteKey,
					"retry_after": strconv.Itoa(retry),
				}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// accountOrIP prefers the authenticated account id and falls back to client IP.
func accountOrIP(r *http.Request) string {
	if id, ok := AccountIDFromContext(r.Context()); ok {
		return "u:" + id
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For is trusted; the service runs behind our own gateway.
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
