package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/store/memory"
)

func TestNewShortCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := NewShortCode()
		require.NoError(t, err)
		assert.Len(t, code, 8)
		assert.NotContains(t, code, "/")
		assert.NotContains(t, code, "+")
		seen[code] = true
	}
	assert.Len(t, seen, 100)
}

func TestLinkIssuer_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("two issues give two distinct working links", func(t *testing.T) {
		f := newFixture()

		first, err := f.links.Issue(ctx, "U1")
		require.NoError(t, err)
		second, err := f.links.Issue(ctx, "U1")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		for i, u := range []string{first, second} {
			code := strings.TrimPrefix(u, testBaseURL+"/s/")
			link, err := f.links.Resolve(ctx, code)
			require.NoError(t, err)
			assert.Equal(t, "U1", link.UserID)
			assert.Contains(t, link.CheckoutURL, "cs_test_")
			assert.NotEmpty(t, link.SessionID, "link %d", i)
		}
	})

	t.Run("collisions are retried", func(t *testing.T) {
		st := memory.New(testPolicy)
		_, err := st.CreateCheckoutLink(ctx, domain.CheckoutLink{ShortCode: "taken000", CheckoutURL: "https://x", UserID: "U0"})
		require.NoError(t, err)

		li := NewLinkIssuer(&fakeCheckout{}, st, testBaseURL, testLogger()).(*linkIssuer)
		codes := []string{"taken000", "taken000", "fresh000"}
		li.newCode = func() (string, error) {
			c := codes[0]
			codes = codes[1:]
			return c, nil
		}

		u, err := li.Issue(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, testBaseURL+"/s/fresh000", u)
	})

	t.Run("collisions are bounded", func(t *testing.T) {
		st := memory.New(testPolicy)
		_, err := st.CreateCheckoutLink(ctx, domain.CheckoutLink{ShortCode: "taken000", CheckoutURL: "https://x", UserID: "U0"})
		require.NoError(t, err)

		li := NewLinkIssuer(&fakeCheckout{}, st, testBaseURL, testLogger()).(*linkIssuer)
		calls := 0
		li.newCode = func() (string, error) {
			calls++
			return "taken000", nil
		}

		_, err = li.Issue(ctx, "U1")
		require.Error(t, err)
		assert.Equal(t, maxCodeAttempts, calls)
	})

	t.Run("session failure stores nothing", func(t *testing.T) {
		f := newFixture()
		f.checkout.err = errUpstream

		_, err := f.links.Issue(ctx, "U1")
		require.Error(t, err)
		assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	})

	t.Run("store failure after session surfaces an error", func(t *testing.T) {
		f := newFixture()
		f.store.Fail = errUpstream

		_, err := f.links.Issue(ctx, "U1")
		require.Error(t, err)
		assert.Equal(t, 1, f.checkout.calls)
	})

	t.Run("payments not configured", func(t *testing.T) {
		li := NewLinkIssuer(nil, memory.New(testPolicy), testBaseURL, testLogger())
		_, err := li.Issue(ctx, "U1")
		assert.Equal(t, domain.ENOTIMPL, domain.ErrorCode(err))
	})
}

func TestLinkIssuer_Resolve(t *testing.T) {
	f := newFixture()

	_, err := f.links.Resolve(context.Background(), "missing0")
	assert.True(t, domain.IsNotFound(err))

	_, err = f.links.Resolve(context.Background(), strings.Repeat("a", 64))
	assert.True(t, domain.IsNotFound(err))
}
