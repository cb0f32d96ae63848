package domain

import (
	"time"
)

// Rating bounds for reviews and aspect ratings.
const (
	MinRating = 1
	MaxRating = 5
)

// Vote types accepted by the review vote endpoint.
const (
	VoteHelpful    = "helpful"
	VoteNotHelpful = "notHelpful"
)

// Review is a customer's review of a product. A user reviews a product at
// most once.
type Review struct {
	ID               string         `json:"id"`
	ProductID        string         `json:"productId"`
	UserID           string         `json:"userId"`
	Rating           int            `json:"rating"`
	Title            string         `json:"title"`
	Body             string         `json:"reviewText"`
	Aspects          []ReviewAspect `json:"aspects"`
	Images           []string       `json:"reviewImages"`
	HelpfulVotes     int            `json:"helpfulVotes"`
	NotHelpfulVotes  int            `json:"notHelpfulVotes"`
	VerifiedPurchase bool           `json:"verifiedPurchase"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// ReviewAspect is a named sub-rating such as "quality" or "value".
type ReviewAspect struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// IsValidVoteType checks whether v is a known vote type.
func IsValidVoteType(v string) bool {
	return v == VoteHelpful || v == VoteNotHelpful
}

// IsValidRating checks the 1 to 5 bound.
func IsValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// CanEdit reports whether actor may edit the review. Only the author can.
func (r *Review) CanEdit(actor Actor) bool {
	return !actor.IsAnonymous() && actor.ID == r.UserID
}

// CanDelete reports whether actor may delete the review: its author or an admin.
func (r *Review) CanDelete(actor Actor) bool {
	return r.CanEdit(actor) || actor.IsAdmin()
}

// SellerReview is a review shown in a seller's feed, labelled with the
// product it belongs to.
type SellerReview struct {
	Review
	ProductName string `json:"productName"`
}
