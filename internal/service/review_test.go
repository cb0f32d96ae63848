package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

func newTestReviewService(repo *mockReviewRepository, c ProductCache) (*ReviewService, *recordingPublisher) {
	producer, pub := newTestProducer()
	svc := NewReviewService(repo, c, producer, nil, newTestLogger())
	svc.now = func() time.Time { return time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC) }
	return svc, pub
}

func customerReview() *domain.Review {
	return &domain.Review{
		ID:               "r-1",
		ProductID:        "p-1",
		UserID:           customer.ID,
		Rating:           4,
		Title:            "Solid",
		Body:             "Does the job",
		Aspects:          []domain.ReviewAspect{},
		Images:           []string{},
		VerifiedPurchase: true,
	}
}

// --- CreateReview ---

func TestCreateReview(t *testing.T) {
	repo := new(mockReviewRepository)
	c := new(mockCache)
	svc, pub := newTestReviewService(repo, c)
	ctx := context.Background()

	summary := domain.RatingSummary{Average: 4.7, Count: 3}
	repo.On("Create", ctx, mock.MatchedBy(func(r *domain.Review) bool {
		return r.ProductID == "p-1" && r.UserID == customer.ID && r.Rating == 5
	})).Return(summary, nil)
	c.On("Invalidate", ctx, "p-1").Return(nil)

	r, err := svc.CreateReview(ctx, customer, CreateReviewInput{
		ProductID: "p-1",
		Rating:    5,
		Title:     " Great ",
		Aspects:   []domain.ReviewAspect{{Name: "quality", Rating: 5}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "Great", r.Title)
	assert.True(t, r.VerifiedPurchase)
	assert.Zero(t, r.HelpfulVotes)
	assert.NotNil(t, r.Images)
	assert.Equal(t, []string{event.TopicProductRatingUpdated, event.TopicReviewCreated}, pub.Topics())
	c.AssertExpectations(t)
}

func TestCreateReview_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		actor domain.Actor
		in    CreateReviewInput
		want  error
	}{
		{"anonymous", anonymous, CreateReviewInput{ProductID: "p-1", Rating: 5, Title: "x"}, apperrors.ErrUnauthorized},
		{"rating too low", customer, CreateReviewInput{ProductID: "p-1", Rating: 0, Title: "x"}, apperrors.ErrInvalidInput},
		{"rating too high", customer, CreateReviewInput{ProductID: "p-1", Rating: 6, Title: "x"}, apperrors.ErrInvalidInput},
		{"bad aspect", customer, CreateReviewInput{ProductID: "p-1", Rating: 5, Title: "x", Aspects: []domain.ReviewAspect{{Name: "fit", Rating: 9}}}, apperrors.ErrInvalidInput},
		{"unnamed aspect", customer, CreateReviewInput{ProductID: "p-1", Rating: 5, Title: "x", Aspects: []domain.ReviewAspect{{Rating: 3}}}, apperrors.ErrInvalidInput},
		{"blank title", customer, CreateReviewInput{ProductID: "p-1", Rating: 5, Title: " "}, apperrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockReviewRepository)
			svc, pub := newTestReviewService(repo, nil)

			_, err := svc.CreateReview(context.Background(), tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, pub.Topics())
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateReview_Duplicate(t *testing.T) {
	repo := new(mockReviewRepository)
	svc, pub := newTestReviewService(repo, nil)
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).
		Return(domain.RatingSummary{}, apperrors.Conflict("you have already reviewed this product"))

	_, err := svc.CreateReview(ctx, customer, CreateReviewInput{ProductID: "p-1", Rating: 3, Title: "again"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
	assert.Empty(t, pub.Topics())
}

func TestCreateReview_ProductMissing(t *testing.T) {
	repo := new(mockReviewRepository)
	svc, _ := newTestReviewService(repo, nil)
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(domain.RatingSummary{}, apperrors.NotFound("product", "p-9"))

	_, err := svc.CreateReview(ctx, customer, CreateReviewInput{ProductID: "p-9", Rating: 3, Title: "t"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateReview_ProductVisibility(t *testing.T) {
	tests := []struct {
		name    string
		product *domain.Product
		actor   domain.Actor
		wantErr error
	}{
		{"approved product", approvedWidget(), customer, nil},
		{"pending product hidden from customer", pendingWidget(), customer, apperrors.ErrNotFound},
		{"pending product hidden from other seller", pendingWidget(), otherSeller, apperrors.ErrNotFound},
		{"pending product visible to owner", pendingWidget(), seller, nil},
		{"pending product visible to admin", pendingWidget(), admin, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockReviewRepository)
			svc, pub := newTestReviewService(repo, nil)
			ctx := context.Background()

			repo.On("Create", ctx, mock.Anything).
				Return(domain.RatingSummary{Average: 4, Count: 1}, nil, tt.product)

			_, err := svc.CreateReview(ctx, tt.actor, CreateReviewInput{ProductID: "p-1", Rating: 4, Title: "Solid"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, pub.Topics())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{event.TopicProductRatingUpdated, event.TopicReviewCreated}, pub.Topics())
		})
	}
}

// --- UpdateReview ---

func TestUpdateReview_ByAuthor(t *testing.T) {
	repo := new(mockReviewRepository)
	svc, pub := newTestReviewService(repo, nil)
	ctx := context.Background()

	repo.On("Update", ctx, "r-1").Return(customerReview(), domain.RatingSummary{Average: 2, Count: 1}, nil)

	r, err := svc.UpdateReview(ctx, customer, "r-1", UpdateReviewInput{Rating: intPtr(2), Body: strPtr("Broke after a week")})
	require.NoError(t, err)

	assert.Equal(t, 2, r.Rating)
	assert.Equal(t, "Broke after a week", r.Body)
	assert.Equal(t, "Solid", r.Title)
	assert.Equal(t, []string{event.TopicProductRatingUpdated, event.TopicReviewUpdated}, pub.Topics())
}

func TestUpdateReview_OnlyAuthor(t *testing.T) {
	for _, actor := range []domain.Actor{otherSeller, admin, {ID: "user-2", Role: domain.RoleCustomer}} {
		repo := new(mockReviewRepository)
		svc, pub := newTestReviewService(repo, nil)
		ctx := context.Background()

		repo.On("Update", ctx, "r-1").Return(customerReview(), domain.RatingSummary{}, nil)

		_, err := svc.UpdateReview(ctx, actor, "r-1", UpdateReviewInput{Rating: intPtr(1)})
		assert.ErrorIs(t, err, apperrors.ErrForbidden, actor.ID)
		assert.Empty(t, pub.Topics())
	}
}

func TestUpdateReview_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   UpdateReviewInput
	}{
		{"rating", UpdateReviewInput{Rating: intPtr(7)}},
		{"aspect", UpdateReviewInput{Aspects: &[]domain.ReviewAspect{{Name: "value", Rating: 0}}}},
		{"title", UpdateReviewInput{Title: strPtr("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockReviewRepository)
			svc, _ := newTestReviewService(repo, nil)

			_, err := svc.UpdateReview(context.Background(), customer, "r-1", tt.in)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateReview_NotFound(t *testing.T) {
	repo := new(mockReviewRepository)
	svc, _ := newTestReviewService(repo, nil)
	ctx := context.Background()

	repo.On("Update", ctx, "missing").Return(nil, domain.RatingSummary{}, apperrors.NotFound("review", "missing"))

	_, err := svc.UpdateReview(ctx, customer, "missing", UpdateReviewInput{Rating: intPtr(3)})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- DeleteReview ---

func TestDeleteReview(t *testing.T) {
	tests := []struct {
		name  string
		actor domain.Actor
		want  error
	}{
		{"author", customer, nil},
		{"admin", admin, nil},
		{"other customer", domain.Actor{ID: "user-2", Role: domain.RoleCustomer}, apperrors.ErrForbidden},
		{"seller", seller, apperrors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockReviewRepository)
			svc, pub := newTestReviewService(repo, nil)
			ctx := context.Background()

			repo.On("Delete", ctx, "r-1").Return(customerReview(), domain.RatingSummary{}, nil)

			err := svc.DeleteReview(ctx, tt.actor, "r-1")
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.Empty(t, pub.Topics())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{event.TopicProductRatingUpdated, event.TopicReviewDeleted}, pub.Topics())
		})
	}
}

// --- VoteReview ---

func TestVoteReview(t *testing.T) {
	repo := new(mockReviewRepository)
	svc, pub := newTestReviewService(repo, nil)
	ctx := context.Background()

	voted := customerReview()
	voted.HelpfulVotes = 1
	repo.On("Vote", ctx, "r-1", domain.VoteHelpful).Return(voted, nil)

	r, err := svc.VoteReview(ctx, seller, "r-1", domain.VoteHelpful)
	require.NoError(t, err)
	assert.Equal(t, 1, r.HelpfulVotes)
	assert.Empty(t, pub.Topics())
}

func TestVoteReview_Rejections(t *testing.T) {
	repo := new(mockReviewRepository)
	svc, _ := newTestReviewService(repo, nil)
	ctx := context.Background()

	_, err := svc.VoteReview(ctx, anonymous, "r-1", domain.VoteHelpful)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = svc.VoteReview(ctx, customer, "r-1", "funny")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	repo.AssertNotCalled(t, "Vote", mock.Anything, mock.Anything, mock.Anything)
}

// --- Listings ---

func TestListProductReviews(t *testing.T) {
	repo := new(mockReviewRepository)
	svc, _ := newTestReviewService(repo, nil)
	ctx := context.Background()

	repo.On("ListByProduct", ctx, "p-1", 2, 10).Return([]domain.Review{*customerReview()}, 11, nil)

	reviews, total, err := svc.ListProductReviews(ctx, "p-1", 2, 10)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
	assert.Equal(t, 11, total)
}

func TestListSellerReviews(t *testing.T) {
	repo := new(mockReviewRepository)
	svc, _ := newTestReviewService(repo, nil)
	ctx := context.Background()

	feed := []domain.SellerReview{{Review: *customerReview(), ProductName: "Widget"}}
	repo.On("ListBySeller", ctx, seller.ID, 1, 20).Return(feed, 1, nil)

	reviews, total, err := svc.ListSellerReviews(ctx, seller, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Widget", reviews[0].ProductName)

	for _, actor := range []domain.Actor{customer, admin, anonymous} {
		_, _, err := svc.ListSellerReviews(ctx, actor, 1, 20)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	}
}
