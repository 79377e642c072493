package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/irfndi/tickerwall/internal/models"
)

const defaultRedisPrefix = "series_cache:"

// RedisStore shares cache entries between display processes. Keys expire
// after ttl, so Redis never holds an entry past its staleness.
type RedisStore struct {
	redis  redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		prefix: defaultRedisPrefix,
	}
}

func (s *RedisStore) redisKey(key models.CacheKey) string {
	return s.prefix + key.String()
}

// Load fetches and decodes the entry for key.
func (s *RedisStore) Load(ctx context.Context, key models.CacheKey) (models.CacheEntry, bool, error) {
	data, err := s.redis.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("decode cached entry %s: %w", key, err)
	}
	return entry, true, nil
}

// Save encodes the entry and stores it with the store's ttl.
func (s *RedisStore) Save(ctx context.Context, key models.CacheKey, entry models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, s.redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Clear removes every entry written by this store.
func (s *RedisStore) Clear(ctx context.Context) (int, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("error scanning cache keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("error clearing cache: %w", err)
	}
	return len(keys), nil
}
