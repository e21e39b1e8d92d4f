package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger logs one line per request with the caller's IP and
// session identity. It sits after the session middleware so the session ID
// is already resolved.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ip, sid string
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				ip = reqMeta.IP
				sid = reqMeta.SessionID
			}

			logger.Info("Incoming HTTP request",
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.String("ip", ip),
				slog.String("session", sid),
			)
			next.ServeHTTP(w, r)
		})
	}
}
