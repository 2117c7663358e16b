package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps values in memory and records the last expiration.
type fakeStore struct {
	values map[string]string
	ttl    time.Duration
	err    error
}

func (f *fakeStore) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = string(value.([]byte))
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	store := &fakeStore{values: map[string]string{}}
	c := &redisCache{client: store, ttl: time.Hour}
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "fp:0")
	require.NoError(t, err)
	assert.False(t, ok)

	result := &domain.CalculationResult{
		Premium:       &domain.Premium{PrimeTotal: decimal.RequireFromString("3490"), TotalTTC: decimal.RequireFromString("3808.76")},
		TariffVersion: "2024.2",
		Fingerprint:   "fp",
	}
	require.NoError(t, c.Set(ctx, "fp:0", result))
	assert.Contains(t, store.values, keyPrefix+"fp:0")
	assert.Equal(t, time.Hour, store.ttl)

	got, ok, err := c.Get(ctx, "fp:0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.TotalTTC.Equal(result.TotalTTC))
	assert.Equal(t, "2024.2", got.TariffVersion)
}

func TestRedisCacheRefusedResultHasNoPremium(t *testing.T) {
	store := &fakeStore{values: map[string]string{}}
	c := &redisCache{client: store, ttl: time.Minute}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", domain.Refused("Territoire non couvert")))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Refus)
	assert.Nil(t, got.Premium)
}

func TestRedisCacheErrors(t *testing.T) {
	ctx := context.Background()
	down := &redisCache{client: &fakeStore{err: errors.New("connection refused")}, ttl: time.Minute}

	_, _, err := down.Get(ctx, "k")
	assert.Equal(t, customError.ErrCodeCacheError, customError.CodeOf(err))
	err = down.Set(ctx, "k", domain.Refused("x"))
	assert.Equal(t, customError.ErrCodeCacheError, customError.CodeOf(err))

	corrupt := &redisCache{client: &fakeStore{values: map[string]string{keyPrefix + "k": "{"}}, ttl: time.Minute}
	_, ok, err := corrupt.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, customError.ErrCodeCacheError, customError.CodeOf(err))
}

func TestNoopAlwaysMisses(t *testing.T) {
	c := Noop()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", domain.Refused("x")))
	got, ok, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}
