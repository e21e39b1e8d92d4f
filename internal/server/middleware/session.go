package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const SessionCookieName = "wifix_session"

// SessionClaims is the signed payload of the session cookie. The subject is
// the opaque session identifier the access registry keys verification marks
// on; nothing else about the client is recorded.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// NewSessionMiddleware guarantees every request carries a valid session
// identity. A missing, expired or tampered cookie is replaced with a fresh
// one; the session ID ends up in the request metadata either way.
func NewSessionMiddleware(logger *slog.Logger, secret string, ttl time.Duration) Middleware {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				if sid, ok := parseSessionToken(cookie.Value, key); ok {
					reqMeta.SessionID = sid
					next.ServeHTTP(w, r)
					return
				}
				logger.Debug("replacing invalid session cookie", slog.String("ip", reqMeta.IP))
			}

			sid := uuid.NewString()
			token, err := signSessionToken(sid, key, ttl)
			if err != nil {
				logger.Error("failed to sign session token", slog.Any("error", err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			reqMeta.SessionID = sid
			next.ServeHTTP(w, r)
		})
	}
}

func parseSessionToken(tokenString string, key []byte) (string, bool) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return key, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

func signSessionToken(sid string, key []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}
