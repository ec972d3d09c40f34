package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLimiter_TenSecondWindow(t *testing.T) {
	mr, client := newMiniRedis(t)
	limiter := NewLimiter(NewRedisStore(client), 100, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, retry, err := limiter.Allow(ctx, "U1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, retry)
	}

	ok, retry, err := limiter.Allow(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, 10*time.Second)

	// Other users have their own windows.
	ok, _, err = limiter.Allow(ctx, "U2")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, _, err = limiter.Allow(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_MinuteWindow(t *testing.T) {
	mr, client := newMiniRedis(t)
	limiter := NewLimiter(NewRedisStore(client), 3, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _, err := limiter.Allow(ctx, "U1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, retry, err := limiter.Allow(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	mr.FastForward(61 * time.Second)

	ok, _, err = limiter.Allow(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_RequiresUser(t *testing.T) {
	_, client := newMiniRedis(t)
	limiter := NewLimiter(NewRedisStore(client), 1, 1)

	_, _, err := limiter.Allow(context.Background(), "")
	assert.Error(t, err)
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, client := newMiniRedis(t)
	mr.Close()

	_, _, err := NewRedisStore(client).IncrementWindow(context.Background(), "k", time.Second)
	assert.Error(t, err)
}
