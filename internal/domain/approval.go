package domain

import (
	"reflect"
	"strings"
	"time"
)

// ReapprovalPolicy decides when an edit to a critical field sends an
// approved or rejected product back to pending.
type ReapprovalPolicy string

const (
	// ReapprovalOnPresent resets approval whenever a critical field appears
	// in the edit, even if its value is unchanged.
	ReapprovalOnPresent ReapprovalPolicy = "present"
	// ReapprovalOnChange resets approval only when a critical field's value
	// actually differs.
	ReapprovalOnChange ReapprovalPolicy = "changed"
)

// CriticalFields are the product attributes whose edit forces re-approval.
var CriticalFields = []string{"name", "price", "description", "category"}

// ProductPatch is a partial product update. Nil fields are left untouched.
// It never carries approval or rating fields.
type ProductPatch struct {
	Name           *string
	Description    *string
	Brand          *string
	Category       *string
	Subcategory    *string
	Price          *int64
	Discount       *int
	Stock          *int
	Images         *[]ProductImage
	Variants       *[]ProductVariant
	Tags           *[]string
	Specifications *map[string]string
	IsFeatured     *bool
}

// TouchedCritical returns the critical fields the patch sets, judged against
// p under policy.
func (patch ProductPatch) TouchedCritical(p *Product, policy ReapprovalPolicy) []string {
	changed := policy == ReapprovalOnChange
	var touched []string
	if patch.Name != nil && (!changed || *patch.Name != p.Name) {
		touched = append(touched, "name")
	}
	if patch.Price != nil && (!changed || *patch.Price != p.Price) {
		touched = append(touched, "price")
	}
	if patch.Description != nil && (!changed || *patch.Description != p.Description) {
		touched = append(touched, "description")
	}
	if patch.Category != nil && (!changed || *patch.Category != p.Category) {
		touched = append(touched, "category")
	}
	return touched
}

// IsEmpty reports whether the patch sets no field.
func (patch ProductPatch) IsEmpty() bool {
	return reflect.ValueOf(patch).IsZero()
}

// SubmitForApproval puts p in the initial pending state.
func SubmitForApproval(p *Product) {
	resetApproval(p)
}

// ApplyEdit applies patch to p and, when it touches a critical field under
// policy, resets p to pending. It reports whether approval was reset.
func ApplyEdit(p *Product, patch ProductPatch, policy ReapprovalPolicy, now time.Time) bool {
	reset := len(patch.TouchedCritical(p, policy)) > 0

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Brand != nil {
		p.Brand = *patch.Brand
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Subcategory != nil {
		p.Subcategory = *patch.Subcategory
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Discount != nil {
		p.Discount = *patch.Discount
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Images != nil {
		p.Images = *patch.Images
	}
	if patch.Variants != nil {
		p.Variants = *patch.Variants
	}
	if patch.Tags != nil {
		p.Tags = *patch.Tags
	}
	if patch.Specifications != nil {
		p.Specifications = *patch.Specifications
	}
	if patch.IsFeatured != nil {
		p.IsFeatured = *patch.IsFeatured
	}

	if reset {
		resetApproval(p)
	}
	p.UpdatedAt = now
	return reset
}

// Approve records an admin approval. A nil or blank note is replaced by
// DefaultApprovalNote.
func Approve(p *Product, note *string, now time.Time) {
	text := DefaultApprovalNote
	if note != nil && strings.TrimSpace(*note) != "" {
		text = strings.TrimSpace(*note)
	}
	decide(p, ApprovalApproved, text, now)
}

// Reject records an admin rejection. The note is mandatory.
func Reject(p *Product, note *string, now time.Time) error {
	if note == nil || strings.TrimSpace(*note) == "" {
		return ErrRejectionNoteRequired
	}
	decide(p, ApprovalRejected, strings.TrimSpace(*note), now)
	return nil
}

func decide(p *Product, status, note string, now time.Time) {
	at := now.UTC()
	p.ApprovalStatus = status
	p.ApprovalNote = &note
	p.ApprovalDate = &at
	p.UpdatedAt = now
}

func resetApproval(p *Product) {
	p.ApprovalStatus = ApprovalPending
	p.ApprovalNote = nil
	p.ApprovalDate = nil
}
