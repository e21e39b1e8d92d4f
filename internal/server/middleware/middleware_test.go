package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stack composes the middlewares the way the router does: metadata first,
// then the session, then whatever the test puts on the inside.
func stack(inner http.Handler, mws ...Middleware) http.Handler {
	h := inner
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestSessionMiddlewareMintsIdentity(t *testing.T) {
	var sid string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if meta, ok := ReqMetadataFrom(r.Context()); ok {
			sid = meta.SessionID
		}
	})
	h := stack(inner,
		RequestMetadataMiddleware(),
		NewSessionMiddleware(discardLogger(), "secret", time.Hour),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if sid == "" {
		t.Fatal("no session ID assigned")
	}
	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatal("no session cookie set")
	}

	// Replaying the cookie keeps the identity and mints nothing new.
	first := sid
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)

	if sid != first {
		t.Errorf("session ID changed across requests: %q then %q", first, sid)
	}
	if len(rec2.Result().Cookies()) != 0 {
		t.Error("valid cookie was replaced")
	}
}

func TestSessionMiddlewareRejectsTamperedCookie(t *testing.T) {
	var sid string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if meta, ok := ReqMetadataFrom(r.Context()); ok {
			sid = meta.SessionID
		}
	})
	h := stack(inner,
		RequestMetadataMiddleware(),
		NewSessionMiddleware(discardLogger(), "secret", time.Hour),
	)

	forged, err := signSessionToken("attacker", []byte("other-key"), time.Hour)
	if err != nil {
		t.Fatalf("signing forged token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: forged})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if sid == "" || sid == "attacker" {
		t.Errorf("session ID = %q, want a freshly minted one", sid)
	}
	var replaced bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value != forged {
			replaced = true
		}
	}
	if !replaced {
		t.Error("tampered cookie was not replaced")
	}
}

func TestRequestLoggerRecordsSession(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		RequestMetadataMiddleware(),
		NewSessionMiddleware(discardLogger(), "secret", time.Hour),
		NewRequestLogger(logger),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/files", nil))

	out := buf.String()
	if !strings.Contains(out, "method=GET") || !strings.Contains(out, "uri=/api/files") {
		t.Errorf("log line missing request fields: %s", out)
	}
	if !strings.Contains(out, "session=") || strings.Contains(out, `session=""`) {
		t.Errorf("log line missing session identity: %s", out)
	}
}
