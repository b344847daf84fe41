package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares cooldown stamps across replicas. A key's TTL is the window, so the
// first SET NX inside a window wins and expiry ends the cooldown.
type RedisStore struct {
	client *redis.Client
	prefix string
	window time.Duration
}

func NewRedisStore(addr, prefix string, window time.Duration) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: addr}), prefix, window)
}

func NewRedisStoreFromClient(client *redis.Client, prefix string, window time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, window: window}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Claim always succeeds without a window; a SET NX without TTL would never expire.
func (s *RedisStore) Claim(ctx context.Context, key string, now time.Time) (bool, error) {
	if s.window <= 0 {
		return true, nil
	}
	ok, err := s.client.SetNX(ctx, s.prefix+key, strconv.FormatInt(now.UnixMilli(), 10), s.window).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
