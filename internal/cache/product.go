package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/marketplace/internal/domain"
)

const (
	productKeyPrefix = "marketplace:product:"
	versionKeySuffix = ":v"

	// versionTTL outlives any in-flight read by a wide margin.
	versionTTL = 24 * time.Hour
)

var (
	// ErrMiss is returned by Get when no entry is cached.
	ErrMiss = errors.New("cache miss")

	// ErrStale is returned by Set when the product was invalidated after the
	// caller read its version.
	ErrStale = errors.New("cache entry stale")
)

func productKey(id string) string { return productKeyPrefix + id }
func versionKey(id string) string { return productKeyPrefix + id + versionKeySuffix }

// ProductCache caches product detail documents in Redis.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache creates a Redis-backed product cache with the given TTL.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached product or ErrMiss.
func (c *ProductCache) Get(ctx context.Context, id string) (*domain.Product, error) {
	data, err := c.client.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get product: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// Version returns the invalidation counter for id. Read it before loading the
// product from storage and hand it to Set.
func (c *ProductCache) Version(ctx context.Context, id string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get product version: %w", err)
	}
	return v, nil
}

// Set stores p under its id with the configured TTL, provided the product has
// not been invalidated since version was read. Otherwise it returns ErrStale
// and writes nothing.
func (c *ProductCache) Set(ctx context.Context, p *domain.Product, version int64) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	vkey := versionKey(p.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis get product version: %w", err)
		}
		if current != version {
			return ErrStale
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, productKey(p.ID), data, c.ttl)
			return nil
		})
		return err
	}, vkey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale):
		return ErrStale
	case errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("redis set product: %w", err)
	}
}

// Invalidate drops the cached entry for id and bumps its version so that
// fills started before the call are discarded.
func (c *ProductCache) Invalidate(ctx context.Context, id string) error {
	vkey := versionKey(id)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, vkey)
		pipe.Expire(ctx, vkey, versionTTL)
		pipe.Del(ctx, productKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate product: %w", err)
	}
	return nil
}
