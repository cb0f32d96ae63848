package repository

import (
	"context"

	"github.com/utafrali/marketplace/internal/domain"
)

// SortOldest orders by creation time ascending. It is used for the admin
// review queue and is not exposed as a public sort option.
const SortOldest = "oldest"

// ProductFilter defines filter criteria for listing products.
// Nil pointers mean "no constraint".
type ProductFilter struct {
	Category       *string
	Subcategory    *string
	Search         *string
	MinPrice       *int64
	MaxPrice       *int64
	ApprovalStatus *string
	SellerID       *string
	SortBy         string
	Page           int
	PerPage        int
}

// ProductMutator edits a locked product in place. Returning an error aborts
// the surrounding transaction.
type ProductMutator func(p *domain.Product) error

// ProductCheck inspects a locked product before a dependent write. Only the
// id, seller and approval status are loaded. Returning an error aborts the write.
type ProductCheck func(p *domain.Product) error

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product. A duplicate SKU yields ErrAlreadyExists.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product regardless of approval status.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetOwned retrieves a product only when it belongs to sellerID.
	GetOwned(ctx context.Context, id, sellerID string) (*domain.Product, error)

	// List returns products matching the filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// ListRelated returns approved products in category other than excludeID.
	ListRelated(ctx context.Context, category, excludeID string, limit int) ([]domain.Product, error)

	// Update locks the product row, applies fn and writes the result back in
	// one transaction. A non-nil sellerID restricts the lookup to that
	// seller's products.
	Update(ctx context.Context, id string, sellerID *string, fn ProductMutator) (*domain.Product, error)

	// Delete removes a product and, through the foreign key, its reviews.
	// A non-nil sellerID restricts the delete to that seller's products.
	Delete(ctx context.Context, id string, sellerID *string) error
}

// ReviewMutator edits or vets a review inside its write transaction.
type ReviewMutator func(r *domain.Review) error

// ReviewRepository persists reviews. Every write that changes the review set
// of a product recomputes that product's rating summary in the same
// transaction and returns it.
type ReviewRepository interface {
	// Create inserts a review once check accepts the locked product. It fails
	// with ErrNotFound when the product does not exist and ErrConflict when
	// the user already reviewed it.
	Create(ctx context.Context, review *domain.Review, check ProductCheck) (domain.RatingSummary, error)

	// Update applies fn to the review and persists its content fields.
	Update(ctx context.Context, id string, fn ReviewMutator) (*domain.Review, domain.RatingSummary, error)

	// Delete removes the review once check approves it.
	Delete(ctx context.Context, id string, check ReviewMutator) (*domain.Review, domain.RatingSummary, error)

	// Vote atomically increments one of the vote counters.
	Vote(ctx context.Context, id, voteType string) (*domain.Review, error)

	// ListByProduct returns a page of a product's reviews, newest first.
	ListByProduct(ctx context.Context, productID string, page, perPage int) ([]domain.Review, int, error)

	// ListBySeller returns a page of reviews across all of a seller's products.
	ListBySeller(ctx context.Context, sellerID string, page, perPage int) ([]domain.SellerReview, int, error)
}
