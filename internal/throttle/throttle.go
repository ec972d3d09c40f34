// Package throttle limits how fast one user can send messages to the bot.
package throttle

import (
	"context"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	minuteWindow = time.Minute
	tenSecWindow = 10 * time.Second
	keyPrefix    = "minami:throttle:"
)

// WindowStore counts events in fixed windows.
type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisStore implements WindowStore with INCR and EXPIRE.
type RedisStore struct {
	client *goredis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// IncrementWindow bumps the counter at key, starting a window on first use,
// and returns the new count and the time left in the window.
func (s *RedisStore) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if key == "" || window <= 0 {
		return 0, 0, fmt.Errorf("invalid throttle window")
	}

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("increment throttle key: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("set throttle key ttl: %w", err)
		}
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read throttle key ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}

	return count, ttl, nil
}

// Limiter applies a per-minute and a per-10-second ceiling per user. A zero
// ceiling disables that window.
type Limiter struct {
	store     WindowStore
	perMinute int
	per10Sec  int
}

// NewLimiter creates a Limiter. Negative ceilings are treated as zero.
func NewLimiter(store WindowStore, perMinute, per10Sec int) *Limiter {
	return &Limiter{
		store:     store,
		perMinute: max(perMinute, 0),
		per10Sec:  max(per10Sec, 0),
	}
}

// Allow counts one message from userID. When the user is over a ceiling it
// returns false and how long until the tightest window resets.
func (l *Limiter) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	if userID == "" {
		return false, 0, fmt.Errorf("user id is required")
	}

	var retryAfter time.Duration

	if l.perMinute > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, keyPrefix+"1m:"+userID, minuteWindow)
		if err != nil {
			return false, 0, err
		}
		if count > int64(l.perMinute) {
			retryAfter = max(retryAfter, ceilSecond(ttl))
		}
	}

	if l.per10Sec > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, keyPrefix+"10s:"+userID, tenSecWindow)
		if err != nil {
			return false, 0, err
		}
		if count > int64(l.per10Sec) {
			retryAfter = max(retryAfter, ceilSecond(ttl))
		}
	}

	if retryAfter > 0 {
		return false, retryAfter, nil
	}
	return true, 0, nil
}

func ceilSecond(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}
