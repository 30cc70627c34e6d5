package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/preyanshu/verdict/internal/domain"
)

// RateLimit caps each client address at limit requests per window through
// the shared limiter. A nil limiter or non-positive limit turns it off.
// Limiter failures let the request through.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		retryAfter := strconv.Itoa(max(1, int(window.Seconds())))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ok, err := limiter.Allow(ctx, "api:"+extractClientIP(r), limit, window)
			switch {
			case err != nil:
				logger.WarnContext(ctx, "rate limiter unavailable, allowing request",
					slog.String("error", err.Error()),
				)
			case !ok:
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the host part of RemoteAddr.
func extractClientIP(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	if ip := strings.TrimSpace(first); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
