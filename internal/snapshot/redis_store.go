package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "blockwatch:snapshots:"

// RedisStore keeps snapshots as plain string values. Archive keys can be
// given a TTL so hourly copies do not accumulate forever.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	archiveTTL time.Duration
}

type RedisOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithArchiveTTL expires every key except latest snapshots after ttl.
func WithArchiveTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.archiveTTL = ttl }
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key, content string) error {
	var ttl time.Duration
	if !isLatestKey(key) {
		ttl = s.archiveTTL
	}
	if err := s.client.Set(ctx, s.prefix+key, content, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
