package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveLogged(t *testing.T, req *http.Request, status int) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := NewRequestLoggingMiddleware(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return buf.String(), rec
}

func TestRequestLoggingMiddleware_LogsRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhook/line", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("User-Agent", "LineBotWebhook/2.0")

	out, _ := serveLogged(t, req, http.StatusOK)

	for _, want := range []string{"POST", "/webhook/line", "status=200", "duration_ms", "192.168.1.1", "LineBotWebhook/2.0", "request_id"} {
		if !strings.Contains(out, want) {
			t.Errorf("log should contain %q, got: %s", want, out)
		}
	}
	if !strings.Contains(out, "level=INFO") {
		t.Errorf("2xx should log at info, got: %s", out)
	}
}

func TestRequestLoggingMiddleware_ServerErrorsLogAtWarn(t *testing.T) {
	out, _ := serveLogged(t, httptest.NewRequest(http.MethodPost, "/webhook/stripe", nil), http.StatusInternalServerError)

	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "status=500") {
		t.Errorf("5xx should log at warn with status, got: %s", out)
	}
}

func TestRequestLoggingMiddleware_RedactsShortCodes(t *testing.T) {
	out, _ := serveLogged(t, httptest.NewRequest(http.MethodGet, "/s/Xy7_abc1", nil), http.StatusFound)

	if strings.Contains(out, "Xy7_abc1") {
		t.Errorf("log exposes short code: %s", out)
	}
	if !strings.Contains(out, "/s/[REDACTED]") {
		t.Errorf("log should contain redacted path, got: %s", out)
	}
}

func TestRequestLoggingMiddleware_RedactsSensitiveQuery(t *testing.T) {
	out, _ := serveLogged(t, httptest.NewRequest(http.MethodGet, "/success?session_id=cs_live_123&lang=ja", nil), http.StatusOK)

	if strings.Contains(out, "cs_live_123") {
		t.Errorf("log exposes session id: %s", out)
	}
	if !strings.Contains(out, "lang=ja") {
		t.Errorf("non-sensitive params should be kept, got: %s", out)
	}
}

func TestRequestLoggingMiddleware_RequestID(t *testing.T) {
	t.Run("generated", func(t *testing.T) {
		_, rec := serveLogged(t, httptest.NewRequest(http.MethodGet, "/success", nil), http.StatusOK)
		if len(rec.Header().Get(RequestIDHeader)) != 36 {
			t.Errorf("expected a uuid request id, got %q", rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/success", nil)
		req.Header.Set(RequestIDHeader, "proxy-req-1")
		out, rec := serveLogged(t, req, http.StatusOK)
		if rec.Header().Get(RequestIDHeader) != "proxy-req-1" {
			t.Errorf("expected proxy id to be echoed, got %q", rec.Header().Get(RequestIDHeader))
		}
		if !strings.Contains(out, "proxy-req-1") {
			t.Errorf("log should carry proxy id, got: %s", out)
		}
	})
}

func TestRequestLoggingMiddleware_SkipsNoisyPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics", "/files/voice/a.mp3"} {
		t.Run(path, func(t *testing.T) {
			out, rec := serveLogged(t, httptest.NewRequest(http.MethodGet, path, nil), http.StatusOK)
			if out != "" {
				t.Errorf("expected no log for %s, got: %s", path, out)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("request should pass through, got %d", rec.Code)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path, query, want string
	}{
		{"/success", "", "/success"},
		{"/success", "token=abc", "/success?token=[REDACTED]"},
		{"/success", "Code=1&x=2", "/success?Code=[REDACTED]&x=2"},
		{"/success", "novalue", "/success"},
	}

	for _, tt := range tests {
		if got := sanitizePath(tt.path, tt.query); got != tt.want {
			t.Errorf("sanitizePath(%q, %q) = %q, want %q", tt.path, tt.query, got, tt.want)
		}
	}
}
