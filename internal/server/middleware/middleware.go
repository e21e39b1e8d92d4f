package middleware

import "net/http"

// Middleware wraps an http.Handler with one cross-cutting concern. The
// router composes them through chi's Use/With.
type Middleware func(http.Handler) http.Handler
