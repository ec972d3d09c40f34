package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStack_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Stack(mark("outer"), mark("inner"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(order, ","); got != "outer,inner,handler" {
		t.Errorf("unexpected order %s", got)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	handler := NewRecoverMiddleware(testLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/line", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "nil map") {
		t.Errorf("panic value leaked: %s", rec.Body.String())
	}
}

func TestIsAPIRequest(t *testing.T) {
	tests := []struct {
		path   string
		accept string
		want   bool
	}{
		{"/s/abc", "text/html", false},
		{"/s/abc", "application/json", true},
		{"/webhook/stripe", "", true},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.accept != "" {
			req.Header.Set("Accept", tt.accept)
		}
		if got := isAPIRequest(req); got != tt.want {
			t.Errorf("isAPIRequest(%s, %q) = %v, want %v", tt.path, tt.accept, got, tt.want)
		}
	}
}
