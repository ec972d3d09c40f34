package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/yuilabs/minami/internal/billing"
	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/store/memory"
)

const testBaseURL = "https://bot.example.com"

var testPolicy = domain.QuotaPolicy{
	FreeCharLimit: 1000,
	CharsPerBlock: 10000,
	WarnThreshold: 100,
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCheckout hands out numbered sessions.
type fakeCheckout struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeCheckout) CreateTicketCheckout(_ context.Context, userID string) (billing.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return billing.CheckoutSession{}, f.err
	}
	return billing.CheckoutSession{
		ID:  fmt.Sprintf("cs_test_%d", f.calls),
		URL: fmt.Sprintf("https://checkout.stripe.com/c/pay/cs_test_%d#%s", f.calls, userID),
	}, nil
}

type fixture struct {
	store    *memory.Store
	checkout *fakeCheckout
	links    LinkIssuer
	gate     QuotaGate
}

func newFixture() *fixture {
	st := memory.New(testPolicy)
	co := &fakeCheckout{}
	links := NewLinkIssuer(co, st, testBaseURL, testLogger())
	return &fixture{
		store:    st,
		checkout: co,
		links:    links,
		gate:     NewQuotaGate(st, links, testPolicy, testLogger()),
	}
}

var errUpstream = errors.New("upstream down")
