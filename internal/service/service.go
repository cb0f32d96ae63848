package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/utafrali/marketplace/internal/cache"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/logger"
)

// ProductCache is the read-through cache for product details. *cache.ProductCache
// implements it. Failures are logged and never surface to callers.
type ProductCache interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	Version(ctx context.Context, id string) (int64, error)
	Set(ctx context.Context, p *domain.Product, version int64) error
	Invalidate(ctx context.Context, id string) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*domain.Product, error) { return nil, cache.ErrMiss }
func (noopCache) Version(context.Context, string) (int64, error)       { return 0, nil }
func (noopCache) Set(context.Context, *domain.Product, int64) error    { return nil }
func (noopCache) Invalidate(context.Context, string) error             { return nil }

// NoopCache disables product caching. It is used when Redis is turned off.
var NoopCache ProductCache = noopCache{}

// productCache wraps a ProductCache with best-effort semantics.
type productCache struct {
	c      ProductCache
	logger *slog.Logger
}

func newProductCache(c ProductCache, l *slog.Logger) productCache {
	if c == nil {
		c = NoopCache
	}
	return productCache{c: c, logger: l}
}

func (pc productCache) get(ctx context.Context, id string) *domain.Product {
	p, err := pc.c.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.WithContext(ctx, pc.logger).WarnContext(ctx, "product cache read failed",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return p
}

// version reads the invalidation counter for id. ok is false when it could
// not be read, in which case the caller must not fill the cache.
func (pc productCache) version(ctx context.Context, id string) (v int64, ok bool) {
	v, err := pc.c.Version(ctx, id)
	if err != nil {
		logger.WithContext(ctx, pc.logger).WarnContext(ctx, "product cache version read failed",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		return 0, false
	}
	return v, true
}

func (pc productCache) set(ctx context.Context, p *domain.Product, version int64) {
	err := pc.c.Set(ctx, p, version)
	if errors.Is(err, cache.ErrStale) {
		logger.WithContext(ctx, pc.logger).DebugContext(ctx, "skipped stale product cache fill",
			slog.String("product_id", p.ID),
		)
		return
	}
	if err != nil {
		logger.WithContext(ctx, pc.logger).WarnContext(ctx, "product cache write failed",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (pc productCache) invalidate(ctx context.Context, id string) {
	if err := pc.c.Invalidate(ctx, id); err != nil {
		logger.WithContext(ctx, pc.logger).WarnContext(ctx, "product cache invalidation failed",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// logPublishError records a failed event publish. Publishing never fails the
// operation that triggered it.
func logPublishError(ctx context.Context, l *slog.Logger, what, id string, err error) {
	if err == nil {
		return
	}
	logger.WithContext(ctx, l).ErrorContext(ctx, "failed to publish "+what+" event",
		slog.String("aggregate_id", id),
		slog.String("error", err.Error()),
	)
}
