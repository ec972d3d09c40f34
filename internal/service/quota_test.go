package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuilabs/minami/internal/domain"
)

func TestQuotaGate_Evaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("new user proceeds at the free ceiling", func(t *testing.T) {
		f := newFixture()
		d, err := f.gate.Evaluate(ctx, "U1", 10)
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionProceed, d.Kind)
		assert.Equal(t, int64(1000), d.Usage.CharLimit)
		assert.Equal(t, int64(990), d.Remaining)
		assert.Empty(t, d.Notice)
	})

	t.Run("near the ceiling warns with remaining characters", func(t *testing.T) {
		f := newFixture()
		f.store.Put(domain.UsageRecord{UserID: "U1", TotalChars: 950, CharLimit: 1000})

		d, err := f.gate.Evaluate(ctx, "U1", 20)
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionWarnNearLimit, d.Kind)
		assert.Equal(t, int64(30), d.Remaining)
		assert.Equal(t, WarnMessage(30), d.Notice)
	})

	t.Run("remaining never goes negative", func(t *testing.T) {
		f := newFixture()
		f.store.Put(domain.UsageRecord{UserID: "U1", TotalChars: 990, CharLimit: 1000})

		d, err := f.gate.Evaluate(ctx, "U1", 50)
		require.NoError(t, err)
		assert.Equal(t, int64(0), d.Remaining)
	})

	t.Run("exhausted sends one notice then stays silent", func(t *testing.T) {
		f := newFixture()
		f.store.Put(domain.UsageRecord{UserID: "U1", TotalChars: 1000, CharLimit: 1000})

		d, err := f.gate.Evaluate(ctx, "U1", 5)
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionExhaustedFirstNotice, d.Kind)
		assert.True(t, strings.HasPrefix(d.ShortURL, testBaseURL+"/s/"))
		assert.Contains(t, d.Notice, d.ShortURL)

		code := strings.TrimPrefix(d.ShortURL, testBaseURL+"/s/")
		link, err := f.links.Resolve(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "U1", link.UserID)

		d, err = f.gate.Evaluate(ctx, "U1", 5)
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionExhaustedSilent, d.Kind)
		assert.Empty(t, d.Notice)
		assert.Equal(t, 1, f.checkout.calls)
	})

	t.Run("concurrent exhausted messages send exactly one notice", func(t *testing.T) {
		f := newFixture()
		f.store.Put(domain.UsageRecord{UserID: "U1", TotalChars: 1200, CharLimit: 1000})

		var wg sync.WaitGroup
		kinds := make([]domain.DecisionKind, 8)
		for i := range kinds {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				d, err := f.gate.Evaluate(ctx, "U1", 1)
				assert.NoError(t, err)
				kinds[i] = d.Kind
			}(i)
		}
		wg.Wait()

		notices := 0
		for _, k := range kinds {
			if k == domain.DecisionExhaustedFirstNotice {
				notices++
			} else {
				assert.Equal(t, domain.DecisionExhaustedSilent, k)
			}
		}
		assert.Equal(t, 1, notices)
	})

	t.Run("failed link issuance releases the claim", func(t *testing.T) {
		f := newFixture()
		f.store.Put(domain.UsageRecord{UserID: "U1", TotalChars: 1000, CharLimit: 1000})
		f.checkout.err = errUpstream

		d, err := f.gate.Evaluate(ctx, "U1", 5)
		require.Error(t, err)
		assert.Equal(t, domain.DecisionUnavailable, d.Kind)
		assert.Equal(t, MessageUnavailable, d.Notice)

		f.checkout.err = nil
		d, err = f.gate.Evaluate(ctx, "U1", 5)
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionExhaustedFirstNotice, d.Kind)
	})

	t.Run("store failure is fail-safe", func(t *testing.T) {
		f := newFixture()
		f.store.Fail = errUpstream

		d, err := f.gate.Evaluate(ctx, "U1", 5)
		require.Error(t, err)
		assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
		assert.Equal(t, domain.DecisionUnavailable, d.Kind)
		assert.False(t, d.Kind.AllowsReply())
		assert.Equal(t, MessageUnavailable, d.Notice)
	})
}

func TestQuotaGate_RecordUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		f := newFixture()

		var wg sync.WaitGroup
		for _, n := range []int64{50, 30} {
			wg.Add(1)
			go func(n int64) {
				defer wg.Done()
				_, err := f.gate.RecordUsage(ctx, "U1", n, 0)
				assert.NoError(t, err)
			}(n)
		}
		wg.Wait()

		u, err := f.store.GetUsage(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, int64(80), u.TotalChars)
	})

	t.Run("charges input and reply", func(t *testing.T) {
		f := newFixture()
		u, err := f.gate.RecordUsage(ctx, "U1", 12, 40)
		require.NoError(t, err)
		assert.Equal(t, int64(52), u.TotalChars)
		assert.False(t, u.NoticeSent)
	})

	t.Run("store failure is reported", func(t *testing.T) {
		f := newFixture()
		f.store.Fail = errUpstream
		_, err := f.gate.RecordUsage(ctx, "U1", 1, 1)
		assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	})
}

func TestQuotaGate_ReleaseNotice(t *testing.T) {
	ctx := context.Background()

	t.Run("released claim can be won again", func(t *testing.T) {
		f := newFixture()
		f.store.Put(domain.UsageRecord{UserID: "U1", TotalChars: 1000, CharLimit: 1000})

		d, err := f.gate.Evaluate(ctx, "U1", 2)
		require.NoError(t, err)
		require.Equal(t, domain.DecisionExhaustedFirstNotice, d.Kind)

		require.NoError(t, f.gate.ReleaseNotice(ctx, "U1"))

		d, err = f.gate.Evaluate(ctx, "U1", 2)
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionExhaustedFirstNotice, d.Kind)
	})

	t.Run("store failure is reported", func(t *testing.T) {
		f := newFixture()
		f.store.Fail = errUpstream
		err := f.gate.ReleaseNotice(ctx, "U1")
		assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	})
}
