package middleware

import (
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// NewRateLimiter throttles requests per client IP with a token bucket.
// Mutating endpoints (upload, delete, auth) sit behind it; PIN guessing is
// slowed here rather than inside the access registry.
func NewRateLimiter(logger *slog.Logger, rps float64, burst int) Middleware {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[ip]
		if !ok {
			l = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[ip] = l
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rps <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				logger.Error("Rate limiter could not find request metadata in context. Check middleware order.")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if !limiterFor(reqMeta.IP).Allow() {
				logger.Warn("request rate limited", slog.String("ip", reqMeta.IP))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
