package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestLimiter returns a limiter whose clock the test controls.
func newTestLimiter(t *testing.T, max int, window time.Duration) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(max, window)
	t.Cleanup(rl.Stop)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("10.0.0.1"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, reset := rl.Allow("10.0.0.1")
	if ok {
		t.Fatal("4th request should be denied")
	}
	if reset != time.Minute {
		t.Errorf("expected reset in 1m, got %v", reset)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)

	rl.Allow("10.0.0.1")
	if ok, _ := rl.Allow("10.0.0.1"); ok {
		t.Error("first key should be limited")
	}
	if ok, _ := rl.Allow("10.0.0.2"); !ok {
		t.Error("second key should have its own budget")
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl, now := newTestLimiter(t, 1, time.Minute)

	rl.Allow("10.0.0.1")
	*now = now.Add(40 * time.Second)
	ok, reset := rl.Allow("10.0.0.1")
	if ok {
		t.Fatal("should still be limited inside the window")
	}
	if reset != 20*time.Second {
		t.Errorf("expected reset in 20s, got %v", reset)
	}

	*now = now.Add(20 * time.Second)
	if ok, _ := rl.Allow("10.0.0.1"); !ok {
		t.Error("should be allowed once the window has passed")
	}
}

func TestRateLimiter_EvictExpired(t *testing.T) {
	rl, now := newTestLimiter(t, 1, time.Minute)

	rl.Allow("10.0.0.1")
	*now = now.Add(2 * time.Minute)
	rl.evictExpired()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.entries) != 0 {
		t.Errorf("expected idle entries to be evicted, have %d", len(rl.entries))
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Stop()
	rl.Stop()
}

func TestRateLimitMiddleware_BlocksWithRetryAfter(t *testing.T) {
	rl, now := newTestLimiter(t, 2, time.Minute)
	mw := NewRateLimitMiddleware(rl, testLogger())

	calls := 0
	handler := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusFound)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/s/abcdefgh", nil)
		req.RemoteAddr = "192.168.1.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusFound {
			t.Fatalf("request %d: expected 302, got %d", i+1, rec.Code)
		}
	}

	*now = now.Add(30500 * time.Millisecond)
	req := httptest.NewRequest(http.MethodGet, "/s/abcdefgh", nil)
	req.RemoteAddr = "192.168.1.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("expected Retry-After 30, got %q", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("expected an HTML page, got %q", rec.Header().Get("Content-Type"))
	}
	if calls != 2 {
		t.Errorf("handler should run twice, ran %d times", calls)
	}
}

func TestRateLimitMiddleware_JSONResponse(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)
	handler := NewRateLimitMiddleware(rl, testLogger()).Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/s/abcdefgh", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i == 0 {
			continue
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["error"] != "rate_limit_exceeded" {
			t.Errorf("unexpected body %v", body)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.168.1.1:5000", "192.168.1.1"},
		{"remote addr without port", nil, "192.168.1.1", "192.168.1.1"},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:80", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 203.0.113.8 "}, "10.0.0.2:80", "203.0.113.8"},
		{"empty forwarded falls through", map[string]string{"X-Forwarded-For": " ", "X-Real-IP": "203.0.113.9"}, "10.0.0.2:80", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
