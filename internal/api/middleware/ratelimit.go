package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"auth-control-plane/internal/api/response"
	"auth-control-plane/internal/ratelimit"
)

// RateLimit is middleware that throttles requests per client address.
// Blocked requests get a 429 with Retry-After and the standard
// X-RateLimit headers.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Allow(ClientIP(r))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
			if !res.Allowed {
				retry := time.Until(res.ResetTime)
				if retry < 0 {
					retry = 0
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				requestID := GetRequestID(r.Context())
				response.Err(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", requestID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the client address used as the rate-limit key: the
// first X-Forwarded-For hop when present, otherwise the connection's
// remote host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
