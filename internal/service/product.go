package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/metrics"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/logger"
)

// Related product limits.
const (
	DefaultRelatedLimit = 4
	MaxRelatedLimit     = 20
)

// ProductService implements catalog reads and seller/admin product writes.
type ProductService struct {
	repo     repository.ProductRepository
	cache    productCache
	producer *event.Producer
	metrics  *metrics.Domain
	policy   domain.ReapprovalPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// NewProductService creates a new product service. A nil cache disables caching.
func NewProductService(
	repo repository.ProductRepository,
	cache ProductCache,
	producer *event.Producer,
	m *metrics.Domain,
	policy domain.ReapprovalPolicy,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		repo:     repo,
		cache:    newProductCache(cache, logger),
		producer: producer,
		metrics:  m,
		policy:   policy,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	SKU            string
	Name           string
	Description    string
	Brand          string
	Category       string
	Subcategory    string
	Price          int64
	Discount       int
	Stock          int
	Images         []domain.ProductImage
	Variants       []domain.ProductVariant
	Tags           []string
	Specifications map[string]string
	IsFeatured     bool
}

// ListProductsInput holds the public listing filters.
type ListProductsInput struct {
	Category    *string
	Subcategory *string
	Search      *string
	MinPrice    *int64
	MaxPrice    *int64
	SortBy      string
	IncludeAll  bool
	Page        int
	PerPage     int
}

// SellerListInput holds the filters of a seller's own catalog listing.
type SellerListInput struct {
	ApprovalStatus *string
	Category       *string
	Search         *string
	SortBy         string
	Page           int
	PerPage        int
}

// CreateProduct stores a seller's new product in the pending state.
func (s *ProductService) CreateProduct(ctx context.Context, actor domain.Actor, in CreateProductInput) (*domain.Product, error) {
	if !actor.IsSeller() {
		return nil, apperrors.Forbidden("only sellers can create products")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.InvalidInput("product name is required")
	}
	if in.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}

	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		sku = generateSKU()
	}

	now := s.now()
	product := &domain.Product{
		ID:             uuid.New().String(),
		SellerID:       actor.ID,
		SKU:            sku,
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Brand:          in.Brand,
		Category:       in.Category,
		Subcategory:    in.Subcategory,
		Price:          in.Price,
		Discount:       in.Discount,
		Stock:          in.Stock,
		Images:         in.Images,
		Variants:       in.Variants,
		Tags:           in.Tags,
		Specifications: in.Specifications,
		IsFeatured:     in.IsFeatured,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	domain.SubmitForApproval(product)

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	logPublishError(ctx, s.logger, "product.created", product.ID, s.producer.PublishProductCreated(ctx, product))

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "product submitted for approval",
		slog.String("product_id", product.ID),
		slog.String("sku", product.SKU),
	)

	return product, nil
}

// GetProduct returns a product the actor may see. Products that are not
// approved are reported as missing to everyone but their seller and admins.
func (s *ProductService) GetProduct(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	product := s.cache.get(ctx, id)
	if product == nil {
		version, fill := s.cache.version(ctx, id)

		var err error
		product, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get product by id: %w", err)
		}
		if fill {
			s.cache.set(ctx, product, version)
		}
	}

	if !product.VisibleTo(actor) {
		return nil, apperrors.NotFound("product", id)
	}
	return product, nil
}

// ListProducts returns the public catalog. IncludeAll lifts the approved-only
// filter and is reserved for admins.
func (s *ProductService) ListProducts(ctx context.Context, actor domain.Actor, in ListProductsInput) ([]domain.Product, int, error) {
	if in.IncludeAll && !actor.IsAdmin() {
		return nil, 0, apperrors.Forbidden("include_all is restricted to admins")
	}
	if err := validateListing(in.SortBy, in.MinPrice, in.MaxPrice); err != nil {
		return nil, 0, err
	}

	filter := repository.ProductFilter{
		Category:    in.Category,
		Subcategory: in.Subcategory,
		Search:      in.Search,
		MinPrice:    in.MinPrice,
		MaxPrice:    in.MaxPrice,
		SortBy:      in.SortBy,
		Page:        in.Page,
		PerPage:     in.PerPage,
	}
	if !in.IncludeAll {
		approved := domain.ApprovalApproved
		filter.ApprovalStatus = &approved
	}

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// ListRelated returns approved products sharing the category of product id.
func (s *ProductService) ListRelated(ctx context.Context, id string, limit int) ([]domain.Product, error) {
	product, err := s.GetProduct(ctx, domain.Actor{}, id)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	if limit > MaxRelatedLimit {
		limit = MaxRelatedLimit
	}

	related, err := s.repo.ListRelated(ctx, product.Category, product.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}
	return related, nil
}

// ListSellerProducts lists the actor's own products in any approval state.
func (s *ProductService) ListSellerProducts(ctx context.Context, actor domain.Actor, in SellerListInput) ([]domain.Product, int, error) {
	if in.ApprovalStatus != nil && !domain.IsValidApprovalStatus(*in.ApprovalStatus) {
		return nil, 0, apperrors.InvalidInput("approval_status must be one of: pending approved rejected")
	}
	if err := validateListing(in.SortBy, nil, nil); err != nil {
		return nil, 0, err
	}

	sellerID := actor.ID
	products, total, err := s.repo.List(ctx, repository.ProductFilter{
		SellerID:       &sellerID,
		ApprovalStatus: in.ApprovalStatus,
		Category:       in.Category,
		Search:         in.Search,
		SortBy:         in.SortBy,
		Page:           in.Page,
		PerPage:        in.PerPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list seller products: %w", err)
	}
	return products, total, nil
}

// GetSellerProduct returns one of the actor's own products.
func (s *ProductService) GetSellerProduct(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	product, err := s.repo.GetOwned(ctx, id, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("get seller product: %w", err)
	}
	return product, nil
}

// UpdateProduct applies a partial edit. Sellers can only reach their own
// products; admins can edit any. Touching a critical field sends the product
// back to pending.
func (s *ProductService) UpdateProduct(ctx context.Context, actor domain.Actor, id string, patch domain.ProductPatch) (*domain.Product, error) {
	if patch.IsEmpty() {
		return nil, apperrors.InvalidInput("no fields to update")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, apperrors.InvalidInput("product name must not be empty")
	}
	if patch.Price != nil && *patch.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}

	scope, err := ownerScope(actor)
	if err != nil {
		return nil, err
	}

	var (
		previous string
		reset    bool
	)
	product, err := s.repo.Update(ctx, id, scope, func(p *domain.Product) error {
		previous = p.ApprovalStatus
		reset = domain.ApplyEdit(p, patch, s.policy, s.now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.cache.invalidate(ctx, id)
	logPublishError(ctx, s.logger, "product.updated", id, s.producer.PublishProductUpdated(ctx, product, reset))

	log := logger.WithContext(ctx, s.logger)
	if reset {
		s.metrics.ApprovalReset()
		log.InfoContext(ctx, "product edit reset approval",
			slog.String("product_id", id),
			slog.String("previous_status", previous),
		)
	} else {
		log.InfoContext(ctx, "product updated", slog.String("product_id", id))
	}

	return product, nil
}

// DeleteProduct removes a product and its reviews. Sellers can only delete
// their own products; admins can delete any.
func (s *ProductService) DeleteProduct(ctx context.Context, actor domain.Actor, id string) error {
	scope, err := ownerScope(actor)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id, scope); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.cache.invalidate(ctx, id)
	logPublishError(ctx, s.logger, "product.deleted", id, s.producer.PublishProductDeleted(ctx, id, actor))

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// ownerScope returns the seller filter applied to writes: none for admins,
// the seller's own id for sellers.
func ownerScope(actor domain.Actor) (*string, error) {
	switch {
	case actor.IsAdmin():
		return nil, nil
	case actor.IsSeller():
		id := actor.ID
		return &id, nil
	default:
		return nil, apperrors.Forbidden("only sellers and admins can modify products")
	}
}

func validateListing(sortBy string, minPrice, maxPrice *int64) error {
	if sortBy != "" && !domain.IsValidSort(sortBy) {
		return apperrors.InvalidInput("sort_by must be one of: newest price_asc price_desc name_asc rating_desc")
	}
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		return apperrors.InvalidInput("min_price must not exceed max_price")
	}
	return nil
}

// generateSKU returns "SKU-" followed by eight upper-case hex characters.
func generateSKU() string {
	return "SKU-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
