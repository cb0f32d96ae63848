package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/service"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AspectRequest is a named sub-rating.
type AspectRequest struct {
	Name   string `json:"name" validate:"required,max=50"`
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
}

// CreateReviewRequest is the JSON request body for creating a review.
type CreateReviewRequest struct {
	ProductID string          `json:"productId" validate:"required"`
	Rating    int             `json:"rating" validate:"required,min=1,max=5"`
	Title     string          `json:"title" validate:"required,max=100"`
	Body      string          `json:"reviewText" validate:"max=3000"`
	Aspects   []AspectRequest `json:"aspects" validate:"max=10,dive"`
	Images    []string        `json:"reviewImages" validate:"max=5,dive,url"`
}

// UpdateReviewRequest is the JSON request body for editing a review.
type UpdateReviewRequest struct {
	Rating  *int             `json:"rating" validate:"omitempty,min=1,max=5"`
	Title   *string          `json:"title" validate:"omitempty,min=1,max=100"`
	Body    *string          `json:"reviewText" validate:"omitempty,max=3000"`
	Aspects *[]AspectRequest `json:"aspects" validate:"omitempty,max=10,dive"`
	Images  *[]string        `json:"reviewImages" validate:"omitempty,max=5,dive,url"`
}

// VoteRequest is the JSON request body for voting on a review.
type VoteRequest struct {
	VoteType string `json:"voteType" validate:"required"`
}

func toAspects(in []AspectRequest) []domain.ReviewAspect {
	out := make([]domain.ReviewAspect, 0, len(in))
	for _, a := range in {
		out = append(out, domain.ReviewAspect{Name: a.Name, Rating: a.Rating})
	}
	return out
}

// --- Handlers ---

// ListProductReviews handles GET /api/reviews/product/{productId}
func (h *ReviewHandler) ListProductReviews(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, r, "product", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	params := pagination.FromRequest(r)
	reviews, total, err := h.service.ListProductReviews(r.Context(), productID.String(), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, reviews, total, params)
}

// ListSellerReviews handles GET /api/reviews/seller/products
func (h *ReviewHandler) ListSellerReviews(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	reviews, total, err := h.service.ListSellerReviews(r.Context(), actorFrom(r), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, reviews, total, params)
}

// CreateReview handles POST /api/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := uuid.Parse(req.ProductID); err != nil {
		httputil.WriteError(w, r, apperrors.NotFound("product", req.ProductID), h.logger)
		return
	}

	review, err := h.service.CreateReview(r.Context(), actorFrom(r), service.CreateReviewInput{
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Title:     req.Title,
		Body:      req.Body,
		Aspects:   toAspects(req.Aspects),
		Images:    req.Images,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, review)
}

// UpdateReview handles PUT /api/reviews/{reviewId}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "review", chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}

	var req UpdateReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := service.UpdateReviewInput{
		Rating: req.Rating,
		Title:  req.Title,
		Body:   req.Body,
		Images: req.Images,
	}
	if req.Aspects != nil {
		aspects := toAspects(*req.Aspects)
		in.Aspects = &aspects
	}

	review, err := h.service.UpdateReview(r.Context(), actorFrom(r), id.String(), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, review)
}

// DeleteReview handles DELETE /api/reviews/{reviewId}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "review", chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}

	if err := h.service.DeleteReview(r.Context(), actorFrom(r), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, deleted(id.String()))
}

// VoteReview handles POST /api/reviews/{reviewId}/vote
func (h *ReviewHandler) VoteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "review", chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}

	var req VoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	review, err := h.service.VoteReview(r.Context(), actorFrom(r), id.String(), req.VoteType)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, review)
}
