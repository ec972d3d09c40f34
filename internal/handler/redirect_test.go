package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuilabs/minami/internal/billing"
	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/service"
	"github.com/yuilabs/minami/internal/store/memory"
)

type stubCheckout struct{}

func (stubCheckout) CreateTicketCheckout(_ context.Context, userID string) (billing.CheckoutSession, error) {
	return billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func TestRedirect(t *testing.T) {
	st := memory.New(handlerPolicy)
	links := service.NewLinkIssuer(stubCheckout{}, st, "https://bot.example.com", discardLogger())

	shortURL, err := links.Issue(context.Background(), "U1")
	require.NoError(t, err)
	path := strings.TrimPrefix(shortURL, "https://bot.example.com")

	mux := http.NewServeMux()
	NewRedirectHandler(links, time.Second, discardLogger()).RegisterRoutes(mux, nil)

	t.Run("known code redirects", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", rec.Header().Get("Location"))
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/s/unknown1", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("oversized code is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/s/"+strings.Repeat("a", 64), nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRedirect_StoreFailure(t *testing.T) {
	st := memory.New(handlerPolicy)
	st.Fail = errors.New("connection refused")
	links := service.NewLinkIssuer(stubCheckout{}, st, "https://bot.example.com", discardLogger())

	mux := http.NewServeMux()
	NewRedirectHandler(links, time.Second, discardLogger()).RegisterRoutes(mux, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/s/abcdefgh", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRedirect_LimitWrapsRoute(t *testing.T) {
	links := service.NewLinkIssuer(stubCheckout{}, memory.New(handlerPolicy), "https://bot.example.com", discardLogger())
	blocked := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}

	mux := http.NewServeMux()
	NewRedirectHandler(links, time.Second, discardLogger()).RegisterRoutes(mux, blocked)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/s/abcdefgh", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

// deadlineLinks records the deadline of the lookup context.
type deadlineLinks struct {
	deadline time.Time
	ok       bool
}

func (d *deadlineLinks) Issue(context.Context, string) (string, error) {
	return "", errors.New("not used")
}

func (d *deadlineLinks) Resolve(ctx context.Context, code string) (domain.CheckoutLink, error) {
	d.deadline, d.ok = ctx.Deadline()
	return domain.CheckoutLink{ShortCode: code, CheckoutURL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func TestRedirect_LookupHasDeadline(t *testing.T) {
	links := &deadlineLinks{}
	mux := http.NewServeMux()
	NewRedirectHandler(links, 3*time.Second, discardLogger()).RegisterRoutes(mux, nil)

	start := time.Now()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/s/abcdefgh", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	require.True(t, links.ok, "lookup must run under a deadline")
	assert.WithinDuration(t, start.Add(3*time.Second), links.deadline, time.Second)
}
