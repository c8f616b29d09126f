package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"docvector-go/pkg/log"
)

// Cache stores vectors keyed by model and text. Failures are never fatal.
type Cache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool)
	Set(ctx context.Context, model, text string, vector []float32)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string, string) ([]float32, bool) { return nil, false }
func (noopCache) Set(context.Context, string, string, []float32)        {}

// RedisCache caches embeddings in Redis.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache returns nil when rdb is nil so callers can pass the result to WithCache unconditionally.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) Cache {
	if rdb == nil {
		return nil
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// CacheKey 生成缓存键：embedding:<model>:<sha256(text)>。
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + model + ":" + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	data, err := c.rdb.Get(ctx, CacheKey(model, text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warnf("[EmbeddingCache] 读取缓存失败: %v", err)
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *RedisCache) Set(ctx context.Context, model, text string, vector []float32) {
	data, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, CacheKey(model, text), data, c.ttl).Err(); err != nil {
		log.Warnf("[EmbeddingCache] 写入缓存失败: %v", err)
	}
}
