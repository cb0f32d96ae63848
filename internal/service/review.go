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

// ReviewService implements product reviews and keeps product ratings in
// step with them.
type ReviewService struct {
	repo     repository.ReviewRepository
	cache    productCache
	producer *event.Producer
	metrics  *metrics.Domain
	logger   *slog.Logger
	now      func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(
	repo repository.ReviewRepository,
	cache ProductCache,
	producer *event.Producer,
	m *metrics.Domain,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		repo:     repo,
		cache:    newProductCache(cache, logger),
		producer: producer,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	ProductID string
	Rating    int
	Title     string
	Body      string
	Aspects   []domain.ReviewAspect
	Images    []string
}

// UpdateReviewInput holds a partial review edit. Nil fields are untouched.
type UpdateReviewInput struct {
	Rating  *int
	Title   *string
	Body    *string
	Aspects *[]domain.ReviewAspect
	Images  *[]string
}

// CreateReview stores the actor's review of a product and refreshes the
// product's rating.
func (s *ReviewService) CreateReview(ctx context.Context, actor domain.Actor, in CreateReviewInput) (*domain.Review, error) {
	if actor.IsAnonymous() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if err := validateRatings(in.Rating, in.Aspects); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperrors.InvalidInput("title is required")
	}

	now := s.now()
	// Purchases are not checked against order history.
	review := &domain.Review{
		ID:               uuid.New().String(),
		ProductID:        in.ProductID,
		UserID:           actor.ID,
		Rating:           in.Rating,
		Title:            strings.TrimSpace(in.Title),
		Body:             in.Body,
		Aspects:          in.Aspects,
		Images:           in.Images,
		VerifiedPurchase: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if review.Aspects == nil {
		review.Aspects = []domain.ReviewAspect{}
	}
	if review.Images == nil {
		review.Images = []string{}
	}

	// Hidden products are reported as missing, the same way GetProduct does.
	summary, err := s.repo.Create(ctx, review, func(p *domain.Product) error {
		if !p.VisibleTo(actor) {
			return apperrors.NotFound("product", p.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.ratingChanged(ctx, review.ProductID, summary, metrics.TriggerReviewCreated)
	logPublishError(ctx, s.logger, "review.created", review.ID, s.producer.PublishReviewCreated(ctx, review))

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
		slog.Int("rating", review.Rating),
	)

	return review, nil
}

// UpdateReview edits a review. Only its author may do so.
func (s *ReviewService) UpdateReview(ctx context.Context, actor domain.Actor, id string, in UpdateReviewInput) (*domain.Review, error) {
	if in.Rating != nil {
		if err := validateRatings(*in.Rating, nil); err != nil {
			return nil, err
		}
	}
	if in.Aspects != nil {
		if err := validateRatings(domain.MinRating, *in.Aspects); err != nil {
			return nil, err
		}
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, apperrors.InvalidInput("title must not be empty")
	}

	review, summary, err := s.repo.Update(ctx, id, func(r *domain.Review) error {
		if !r.CanEdit(actor) {
			return apperrors.Forbidden("you can only edit your own reviews")
		}
		if in.Rating != nil {
			r.Rating = *in.Rating
		}
		if in.Title != nil {
			r.Title = strings.TrimSpace(*in.Title)
		}
		if in.Body != nil {
			r.Body = *in.Body
		}
		if in.Aspects != nil {
			r.Aspects = *in.Aspects
		}
		if in.Images != nil {
			r.Images = *in.Images
		}
		r.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	s.ratingChanged(ctx, review.ProductID, summary, metrics.TriggerReviewUpdated)
	logPublishError(ctx, s.logger, "review.updated", review.ID, s.producer.PublishReviewUpdated(ctx, review))

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "review updated",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
	)

	return review, nil
}

// DeleteReview removes a review. Its author and admins may do so.
func (s *ReviewService) DeleteReview(ctx context.Context, actor domain.Actor, id string) error {
	review, summary, err := s.repo.Delete(ctx, id, func(r *domain.Review) error {
		if !r.CanDelete(actor) {
			return apperrors.Forbidden("you can only delete your own reviews")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	s.ratingChanged(ctx, review.ProductID, summary, metrics.TriggerReviewDeleted)
	logPublishError(ctx, s.logger, "review.deleted", review.ID, s.producer.PublishReviewDeleted(ctx, review))

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "review deleted",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
	)
	return nil
}

// VoteReview counts one helpful or not-helpful vote. Votes are not
// de-duplicated per voter.
func (s *ReviewService) VoteReview(ctx context.Context, actor domain.Actor, id, voteType string) (*domain.Review, error) {
	if actor.IsAnonymous() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if !domain.IsValidVoteType(voteType) {
		return nil, apperrors.InvalidInput("voteType must be one of: helpful notHelpful")
	}

	review, err := s.repo.Vote(ctx, id, voteType)
	if err != nil {
		return nil, fmt.Errorf("vote review: %w", err)
	}
	return review, nil
}

// ListProductReviews returns a page of a product's reviews, newest first.
func (s *ReviewService) ListProductReviews(ctx context.Context, productID string, page, perPage int) ([]domain.Review, int, error) {
	reviews, total, err := s.repo.ListByProduct(ctx, productID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list product reviews: %w", err)
	}
	return reviews, total, nil
}

// ListSellerReviews returns reviews across the actor's products.
func (s *ReviewService) ListSellerReviews(ctx context.Context, actor domain.Actor, page, perPage int) ([]domain.SellerReview, int, error) {
	if !actor.IsSeller() {
		return nil, 0, apperrors.Forbidden("only sellers have a review feed")
	}

	reviews, total, err := s.repo.ListBySeller(ctx, actor.ID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list seller reviews: %w", err)
	}
	return reviews, total, nil
}

func (s *ReviewService) ratingChanged(ctx context.Context, productID string, summary domain.RatingSummary, trigger string) {
	s.metrics.RatingRecomputed(trigger)
	s.cache.invalidate(ctx, productID)
	logPublishError(ctx, s.logger, "product.rating_updated", productID, s.producer.PublishRatingUpdated(ctx, productID, summary))

	logger.WithContext(ctx, s.logger).DebugContext(ctx, "product rating recomputed",
		slog.String("product_id", productID),
		slog.Float64("average", summary.Average),
		slog.Int("count", summary.Count),
	)
}

func validateRatings(rating int, aspects []domain.ReviewAspect) error {
	if !domain.IsValidRating(rating) {
		return apperrors.InvalidInput("rating must be between 1 and 5")
	}
	for _, a := range aspects {
		if strings.TrimSpace(a.Name) == "" {
			return apperrors.InvalidInput("aspect name is required")
		}
		if !domain.IsValidRating(a.Rating) {
			return apperrors.InvalidInput(fmt.Sprintf("aspect %q rating must be between 1 and 5", a.Name))
		}
	}
	return nil
}
