package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/marketplace/internal/cache"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/repository"
	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
)

// --- Mock Product Repository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetOwned(ctx context.Context, id, sellerID string) (*domain.Product, error) {
	args := m.Called(ctx, id, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) ListRelated(ctx context.Context, category, excludeID string, limit int) ([]domain.Product, error) {
	args := m.Called(ctx, category, excludeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

// Update runs fn against the product configured with Return, the way the
// real repository runs it against the locked row.
func (m *mockProductRepository) Update(ctx context.Context, id string, sellerID *string, fn repository.ProductMutator) (*domain.Product, error) {
	args := m.Called(ctx, id, sellerID)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	p := args.Get(0).(*domain.Product)
	if err := fn(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id string, sellerID *string) error {
	args := m.Called(ctx, id, sellerID)
	return args.Error(0)
}

// --- Mock Review Repository ---

type mockReviewRepository struct {
	mock.Mock
}

// Create runs check against the product given as an optional third Return
// value, the way the real repository runs it against the locked row.
func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review, check repository.ProductCheck) (domain.RatingSummary, error) {
	args := m.Called(ctx, review)
	if len(args) > 2 {
		if err := check(args.Get(2).(*domain.Product)); err != nil {
			return domain.RatingSummary{}, err
		}
	}
	return args.Get(0).(domain.RatingSummary), args.Error(1)
}

func (m *mockReviewRepository) Update(ctx context.Context, id string, fn repository.ReviewMutator) (*domain.Review, domain.RatingSummary, error) {
	args := m.Called(ctx, id)
	if err := args.Error(2); err != nil {
		return nil, domain.RatingSummary{}, err
	}
	r := args.Get(0).(*domain.Review)
	if err := fn(r); err != nil {
		return nil, domain.RatingSummary{}, err
	}
	return r, args.Get(1).(domain.RatingSummary), nil
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string, check repository.ReviewMutator) (*domain.Review, domain.RatingSummary, error) {
	args := m.Called(ctx, id)
	if err := args.Error(2); err != nil {
		return nil, domain.RatingSummary{}, err
	}
	r := args.Get(0).(*domain.Review)
	if err := check(r); err != nil {
		return nil, domain.RatingSummary{}, err
	}
	return r, args.Get(1).(domain.RatingSummary), nil
}

func (m *mockReviewRepository) Vote(ctx context.Context, id, voteType string) (*domain.Review, error) {
	args := m.Called(ctx, id, voteType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ListByProduct(ctx context.Context, productID string, page, perPage int) ([]domain.Review, int, error) {
	args := m.Called(ctx, productID, page, perPage)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) ListBySeller(ctx context.Context, sellerID string, page, perPage int) ([]domain.SellerReview, int, error) {
	args := m.Called(ctx, sellerID, page, perPage)
	return args.Get(0).([]domain.SellerReview), args.Int(1), args.Error(2)
}

// --- Mock Cache ---

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCache) Version(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, p *domain.Product, version int64) error {
	return m.Called(ctx, p, version).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

var _ ProductCache = (*cache.ProductCache)(nil)

// --- Recording Publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []*pkgkafka.Event
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, e *pkgkafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProducer() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }

var (
	seller      = domain.Actor{ID: "seller-1", Role: domain.RoleSeller}
	otherSeller = domain.Actor{ID: "seller-2", Role: domain.RoleSeller}
	admin       = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	customer    = domain.Actor{ID: "user-1", Role: domain.RoleCustomer}
	anonymous   = domain.Actor{}
)
