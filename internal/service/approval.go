package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/metrics"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/logger"
)

// ApprovalService implements the admin side of the catalog approval workflow.
type ApprovalService struct {
	repo     repository.ProductRepository
	cache    productCache
	producer *event.Producer
	metrics  *metrics.Domain
	logger   *slog.Logger
	now      func() time.Time
}

// NewApprovalService creates a new approval service.
func NewApprovalService(
	repo repository.ProductRepository,
	cache ProductCache,
	producer *event.Producer,
	m *metrics.Domain,
	logger *slog.Logger,
) *ApprovalService {
	return &ApprovalService{
		repo:     repo,
		cache:    newProductCache(cache, logger),
		producer: producer,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListPending returns the review queue, oldest submissions first.
func (s *ApprovalService) ListPending(ctx context.Context, page, perPage int) ([]domain.Product, int, error) {
	pending := domain.ApprovalPending
	products, total, err := s.repo.List(ctx, repository.ProductFilter{
		ApprovalStatus: &pending,
		SortBy:         repository.SortOldest,
		Page:           page,
		PerPage:        perPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list pending products: %w", err)
	}
	return products, total, nil
}

// Approve marks a product approved. A missing note is replaced with the
// default approval note.
func (s *ApprovalService) Approve(ctx context.Context, actor domain.Actor, id string, note *string) (*domain.Product, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can approve products")
	}

	product, err := s.repo.Update(ctx, id, nil, func(p *domain.Product) error {
		domain.Approve(p, note, s.now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("approve product: %w", err)
	}

	s.decided(ctx, actor, product)
	return product, nil
}

// Reject marks a product rejected. The note is mandatory.
func (s *ApprovalService) Reject(ctx context.Context, actor domain.Actor, id string, note *string) (*domain.Product, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can reject products")
	}
	if note == nil || strings.TrimSpace(*note) == "" {
		return nil, apperrors.InvalidInput("a rejection note is required")
	}

	product, err := s.repo.Update(ctx, id, nil, func(p *domain.Product) error {
		return domain.Reject(p, note, s.now())
	})
	if err != nil {
		if errors.Is(err, domain.ErrRejectionNoteRequired) {
			return nil, apperrors.InvalidInput("a rejection note is required")
		}
		return nil, fmt.Errorf("reject product: %w", err)
	}

	s.decided(ctx, actor, product)
	return product, nil
}

func (s *ApprovalService) decided(ctx context.Context, actor domain.Actor, product *domain.Product) {
	s.cache.invalidate(ctx, product.ID)
	s.metrics.ApprovalDecision(product.ApprovalStatus)
	logPublishError(ctx, s.logger, "product decision", product.ID, s.producer.PublishProductDecision(ctx, product))

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "product approval decision",
		slog.String("product_id", product.ID),
		slog.String("decision", product.ApprovalStatus),
		slog.String("admin_id", actor.ID),
	)
}
