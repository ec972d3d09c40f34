// Package middleware contains HTTP middleware for the minami server.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler
// and are composed with Stack.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// Stack composes multiple middleware functions into a single middleware.
//
// The first middleware in the list is the outermost: it runs first on the
// request and last on the response.
//
//	stack := Stack(recoverMw.Handler, loggingMw.Handler, metrics.Middleware)
//	server.Handler = stack(mux)
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// RecoverMiddleware turns handler panics into 500 responses.
type RecoverMiddleware struct {
	logger *slog.Logger
}

// NewRecoverMiddleware creates a new panic recovery middleware.
func NewRecoverMiddleware(logger *slog.Logger) *RecoverMiddleware {
	return &RecoverMiddleware{logger: logger}
}

// Handler returns middleware that recovers from panics in next.
func (m *RecoverMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			m.logger.Error("panic in handler",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// isAPIRequest reports whether the client expects a JSON response.
func isAPIRequest(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/webhook/")
}
