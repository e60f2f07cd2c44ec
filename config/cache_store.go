package config

import (
	"github.com/redis/go-redis/v9"

	"goa.design/streampipe/cache"
)

// BuildCacheStore constructs the cache.Store named by cfg.Cache.Backend. An
// empty backend defaults to an in-process cache.MemoryStore, matching the
// "works with zero external config" default the rest of this package
// follows for every optional piece.
func BuildCacheStore(cfg *Config) cache.Store {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		return cache.NewRedisStore(client, cfg.Cache.RedisKeyPrefix)
	default:
		return cache.NewMemoryStore()
	}
}
