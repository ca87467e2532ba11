package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"roadtrip-server/models"
)

// RedisCache stores discovery results in Redis under a per-session
// namespace. Expiry is left to Redis TTLs.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

func NewRedisCache(client *redis.Client, namespace string) *RedisCache {
	return &RedisCache{client: client, namespace: namespace}
}

func (r *RedisCache) entryKey(key CacheKey) string {
	return fmt.Sprintf("discovery:%s:%s", r.namespace, key.String())
}

func (r *RedisCache) indexKey() string {
	return fmt.Sprintf("discovery:%s:keys", r.namespace)
}

func (r *RedisCache) Get(ctx context.Context, key CacheKey) (models.DiscoveryResult, bool, error) {
	val, err := r.client.Get(ctx, r.entryKey(key)).Bytes()
	if err == redis.Nil {
		return models.DiscoveryResult{}, false, nil
	} else if err != nil {
		return models.DiscoveryResult{}, false, err
	}

	var result models.DiscoveryResult
	if err := json.Unmarshal(val, &result); err != nil {
		return models.DiscoveryResult{}, false, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return result, true, nil
}

func (r *RedisCache) Put(ctx context.Context, key CacheKey, result models.DiscoveryResult, ttl time.Duration) error {
	val, err := json.Marshal(result)
	if err != nil {
		return err
	}
	entry := r.entryKey(key)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, entry, val, ttl)
	pipe.SAdd(ctx, r.indexKey(), entry)
	_, err = pipe.Exec(ctx)
	return err
}

// Clear removes every entry written under this namespace.
func (r *RedisCache) Clear(ctx context.Context) error {
	keys, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return err
	}
	keys = append(keys, r.indexKey())
	return r.client.Del(ctx, keys...).Err()
}
