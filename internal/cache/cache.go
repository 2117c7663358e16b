// Package cache keeps calculation results in redis, keyed by the engine's
// input key, so identical quotes are priced once per tariff version.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "premium:result:"

// ResultCache stores calculation results. A miss is not an error.
type ResultCache interface {
	Get(ctx context.Context, key string) (*domain.CalculationResult, bool, error)
	Set(ctx context.Context, key string, result *domain.CalculationResult) error
}

// store is the part of the redis client the cache uses.
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type redisCache struct {
	client store
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) ResultCache {
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, key string) (*domain.CalculationResult, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, customError.WrapCacheError(err)
	}

	var result domain.CalculationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, customError.WrapCacheError(err)
	}
	return &result, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, result *domain.CalculationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return customError.WrapCacheError(err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

type noop struct{}

// Noop is used when redis is disabled: every lookup misses.
func Noop() ResultCache {
	return noop{}
}

func (noop) Get(context.Context, string) (*domain.CalculationResult, bool, error) {
	return nil, false, nil
}

func (noop) Set(context.Context, string, *domain.CalculationResult) error {
	return nil
}
