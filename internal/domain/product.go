package domain

import (
	"time"
)

// Approval status constants.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// DefaultApprovalNote is recorded when an admin approves without a note.
const DefaultApprovalNote = "Product approved by admin"

// Sort orders accepted by product listings.
const (
	SortNewest     = "newest"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
	SortNameAsc    = "name_asc"
	SortRatingDesc = "rating_desc"
)

// Product is a catalog entry owned by one seller.
type Product struct {
	ID             string            `json:"id"`
	SellerID       string            `json:"sellerId"`
	SKU            string            `json:"sku"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Brand          string            `json:"brand,omitempty"`
	Category       string            `json:"category"`
	Subcategory    string            `json:"subcategory,omitempty"`
	Price          int64             `json:"price"`
	Discount       int               `json:"discount"`
	Stock          int               `json:"stock"`
	Images         []ProductImage    `json:"images"`
	Variants       []ProductVariant  `json:"variants"`
	Tags           []string          `json:"tags"`
	Specifications map[string]string `json:"specifications,omitempty"`
	IsFeatured     bool              `json:"isFeatured"`
	ApprovalStatus string            `json:"approvalStatus"`
	ApprovalDate   *time.Time        `json:"approvalDate,omitempty"`
	ApprovalNote   *string           `json:"approvalNote,omitempty"`
	Ratings        RatingSummary     `json:"ratings"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// ProductImage is an image attached to a product.
type ProductImage struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
}

// ProductVariant is a purchasable variation such as a size or colour.
type ProductVariant struct {
	Name  string `json:"name"`
	SKU   string `json:"sku,omitempty"`
	Price int64  `json:"price"`
	Stock int    `json:"stock"`
}

// IsValidApprovalStatus checks whether s is a known approval status.
func IsValidApprovalStatus(s string) bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// IsValidSort checks whether s is a known listing sort order.
func IsValidSort(s string) bool {
	switch s {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortNameAsc, SortRatingDesc:
		return true
	}
	return false
}

// IsPublic reports whether the product may appear in customer-facing reads.
func (p *Product) IsPublic() bool {
	return p.ApprovalStatus == ApprovalApproved
}

// VisibleTo reports whether actor may read p. Approved products are public;
// anything else is visible only to the owning seller and to admins.
func (p *Product) VisibleTo(actor Actor) bool {
	if p.IsPublic() || actor.IsAdmin() {
		return true
	}
	return !actor.IsAnonymous() && actor.ID == p.SellerID
}
