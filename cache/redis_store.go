package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by a shared github.com/redis/go-redis/v9
// client, for deployments where the cache must survive process restarts or
// be shared across multiple agent instances.
type RedisStore struct {
	// Client is the Redis connection. Required.
	Client *redis.Client
	// KeyPrefix namespaces cache keys within a shared Redis instance.
	KeyPrefix string
}

// NewRedisStore constructs a RedisStore over client, namespacing keys with
// prefix (pass "" for no namespacing).
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{Client: client, KeyPrefix: prefix}
}

func (s *RedisStore) redisKey(key string) string {
	return s.KeyPrefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) ([][]byte, bool, error) {
	raw, err := s.Client.Get(ctx, s.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}
	var serialized [][]byte
	if err := json.Unmarshal(raw, &serialized); err != nil {
		return nil, false, fmt.Errorf("cache: decode redis entry: %w", err)
	}
	return serialized, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, serialized [][]byte) error {
	raw, err := json.Marshal(serialized)
	if err != nil {
		return fmt.Errorf("cache: encode redis entry: %w", err)
	}
	if err := s.Client.Set(ctx, s.redisKey(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}
