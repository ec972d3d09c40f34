package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuilabs/minami/internal/domain"
)

var policy = domain.QuotaPolicy{FreeCharLimit: 1000, CharsPerBlock: 10000, WarnThreshold: 100}

func TestAddChars_Concurrent(t *testing.T) {
	s := New(policy)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, n := range []int64{50, 30} {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			_, err := s.AddChars(ctx, "U1", n)
			assert.NoError(t, err)
		}(n)
	}
	wg.Wait()

	u, err := s.GetUsage(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(80), u.TotalChars)
	assert.Equal(t, int64(1000), u.CharLimit)
}

func TestClaimNotice_OnlyOnceWhenExhausted(t *testing.T) {
	s := New(policy)
	ctx := context.Background()

	ok, err := s.ClaimNotice(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, ok, "no row, nothing to claim")

	s.Put(domain.UsageRecord{UserID: "U1", TotalChars: 1000, CharLimit: 1000})

	ok, err = s.ClaimNotice(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimNotice(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReleaseNotice(ctx, "U1"))
	ok, err = s.ClaimNotice(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreditOnce(t *testing.T) {
	s := New(policy)
	ctx := context.Background()
	s.Put(domain.UsageRecord{UserID: "U1", TotalChars: 1200, CharLimit: 1000, NoticeSent: true})

	params := domain.CreditParams{EventID: "evt_1", UserID: "U1", Quantity: 2, Chars: 20000}

	res, err := s.CreditOnce(ctx, params)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(21000), res.Usage.CharLimit)
	assert.False(t, res.Usage.NoticeSent)

	res, err = s.CreditOnce(ctx, params)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, int64(21000), res.Usage.CharLimit)
	assert.Equal(t, 1, s.Events())
}

func TestCreditOnce_NewUser(t *testing.T) {
	s := New(policy)

	res, err := s.CreditOnce(context.Background(), domain.CreditParams{EventID: "evt_2", UserID: "U2", Quantity: 1, Chars: 10000})
	require.NoError(t, err)
	assert.Equal(t, int64(11000), res.Usage.CharLimit)
	assert.Equal(t, int64(0), res.Usage.TotalChars)
}

func TestCheckoutLinks(t *testing.T) {
	s := New(policy)
	ctx := context.Background()

	_, err := s.CreateCheckoutLink(ctx, domain.CheckoutLink{ShortCode: "abcdEFGH", CheckoutURL: "https://checkout.example/1", UserID: "U1"})
	require.NoError(t, err)

	_, err = s.CreateCheckoutLink(ctx, domain.CheckoutLink{ShortCode: "abcdEFGH", CheckoutURL: "https://checkout.example/2", UserID: "U2"})
	assert.True(t, domain.IsConflict(err))

	link, err := s.GetCheckoutLink(ctx, "abcdEFGH")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/1", link.CheckoutURL)

	_, err = s.GetCheckoutLink(ctx, "missing1")
	assert.True(t, domain.IsNotFound(err))
}

func TestRecentMessages_OldestFirst(t *testing.T) {
	s := New(policy)
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveMessage(ctx, domain.ChatMessage{UserID: "U1", Role: domain.RoleUser, Content: c}))
	}

	msgs, err := s.RecentMessages(ctx, "U1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)
}

func TestTargets(t *testing.T) {
	s := New(policy)
	ctx := context.Background()

	require.NoError(t, s.MarkActive(ctx, "U1"))
	require.NoError(t, s.MarkActive(ctx, "U2"))

	n, err := s.DeactivateTargets(ctx, []string{"U1", "U9"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ids, err := s.ListActiveTargets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"U2"}, ids)
}
