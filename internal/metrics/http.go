package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Short link codes and stored voice file keys are per user and must not
// become label values.
var (
	shortLinkPattern = regexp.MustCompile(`^/s/[^/]+$`)
	filesPattern     = regexp.MustCompile(`^/files/.+$`)
)

// statusRecorder remembers the first status code a handler writes.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.wroteHeader {
		sr.status = code
		sr.wroteHeader = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.wroteHeader = true
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// routeLabel prefers the ServeMux pattern that served r, so unknown paths
// all land on the catch-all route.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		if _, path, ok := strings.Cut(r.Pattern, " "); ok {
			return path
		}
		return r.Pattern
	}
	return normalizePath(r.URL.Path)
}

// normalizePath is the fallback for requests served outside the mux.
func normalizePath(path string) string {
	switch {
	case shortLinkPattern.MatchString(path):
		return "/s/{code}"
	case filesPattern.MatchString(path):
		return "/files/{key...}"
	}
	return path
}

// Middleware counts webhook, redirect and page requests by route and status.
// Prometheus scrapes are not counted.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
