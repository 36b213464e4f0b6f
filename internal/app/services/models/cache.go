package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/titanicml/prediction-backend/internal/app/domain/mlmodel"
)

const modelListKey = "models:list"

// Cache holds the model list between upstream fetches. Misses and cache
// failures are equivalent; the caller falls through to the model service.
type Cache interface {
	GetModelList(ctx context.Context) ([]mlmodel.Metadata, bool)
	SetModelList(ctx context.Context, models []mlmodel.Metadata)
	InvalidateModelList(ctx context.Context)
}

// RedisCache caches the model list in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a cache on the given client. A non-positive ttl
// defaults to 30 seconds.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) GetModelList(ctx context.Context) ([]mlmodel.Metadata, bool) {
	raw, err := c.client.Get(ctx, modelListKey).Bytes()
	if err != nil {
		return nil, false
	}

	var models []mlmodel.Metadata
	if err := json.Unmarshal(raw, &models); err != nil {
		return nil, false
	}
	return models, true
}

func (c *RedisCache) SetModelList(ctx context.Context, models []mlmodel.Metadata) {
	raw, err := json.Marshal(models)
	if err != nil {
		return
	}
	c.client.Set(ctx, modelListKey, raw, c.ttl)
}

func (c *RedisCache) InvalidateModelList(ctx context.Context) {
	c.client.Del(ctx, modelListKey)
}

// NopCache disables caching; every list goes to the model service.
type NopCache struct{}

var _ Cache = NopCache{}

func (NopCache) GetModelList(context.Context) ([]mlmodel.Metadata, bool) { return nil, false }
func (NopCache) SetModelList(context.Context, []mlmodel.Metadata)       {}
func (NopCache) InvalidateModelList(context.Context)                    {}
