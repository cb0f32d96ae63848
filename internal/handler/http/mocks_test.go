package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/pkg/health"
	"github.com/utafrali/marketplace/pkg/middleware"
)

// =============================================================================
// Mock repositories
// =============================================================================

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) GetOwned(ctx context.Context, id, sellerID string) (*domain.Product, error) {
	args := m.Called(ctx, id, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepo) ListRelated(ctx context.Context, category, excludeID string, limit int) ([]domain.Product, error) {
	args := m.Called(ctx, category, excludeID, limit)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockProductRepo) Update(ctx context.Context, id string, sellerID *string, fn repository.ProductMutator) (*domain.Product, error) {
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

func (m *mockProductRepo) Delete(ctx context.Context, id string, sellerID *string) error {
	return m.Called(ctx, id, sellerID).Error(0)
}

type mockReviewRepo struct {
	mock.Mock
}

// Create runs check against the product given as an optional third Return
// value, the way the real repository runs it against the locked row.
func (m *mockReviewRepo) Create(ctx context.Context, review *domain.Review, check repository.ProductCheck) (domain.RatingSummary, error) {
	args := m.Called(ctx, review)
	if len(args) > 2 {
		if err := check(args.Get(2).(*domain.Product)); err != nil {
			return domain.RatingSummary{}, err
		}
	}
	return args.Get(0).(domain.RatingSummary), args.Error(1)
}

func (m *mockReviewRepo) Update(ctx context.Context, id string, fn repository.ReviewMutator) (*domain.Review, domain.RatingSummary, error) {
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

func (m *mockReviewRepo) Delete(ctx context.Context, id string, check repository.ReviewMutator) (*domain.Review, domain.RatingSummary, error) {
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

func (m *mockReviewRepo) Vote(ctx context.Context, id, voteType string) (*domain.Review, error) {
	args := m.Called(ctx, id, voteType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepo) ListByProduct(ctx context.Context, productID string, page, perPage int) ([]domain.Review, int, error) {
	args := m.Called(ctx, productID, page, perPage)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepo) ListBySeller(ctx context.Context, sellerID string, page, perPage int) ([]domain.SellerReview, int, error) {
	args := m.Called(ctx, sellerID, page, perPage)
	return args.Get(0).([]domain.SellerReview), args.Int(1), args.Error(2)
}

// =============================================================================
// Test environment
// =============================================================================

const (
	testProductID = "5f0c6a2e-8f3b-4c1e-9a57-0d3c2b1a9e01"
	testReviewID  = "9b2d4e6f-1a3c-4e5f-8a7b-6c5d4e3f2a10"
)

var (
	sellerActor   = domain.Actor{ID: "seller-1", Role: domain.RoleSeller}
	otherSeller   = domain.Actor{ID: "seller-2", Role: domain.RoleSeller}
	adminActor    = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	customerActor = domain.Actor{ID: "user-1", Role: domain.RoleCustomer}
)

type testEnv struct {
	products *mockProductRepo
	reviews  *mockReviewRepo
	jwt      *auth.JWTManager
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	products := new(mockProductRepo)
	reviews := new(mockReviewRepo)
	producer := event.NewProducer(nil, logger)
	jwt := auth.NewJWTManager("handler-test-secret", "")

	svcs := Services{
		Products:  service.NewProductService(products, nil, producer, nil, domain.ReapprovalOnPresent, logger),
		Approvals: service.NewApprovalService(products, nil, producer, nil, logger),
		Reviews:   service.NewReviewService(reviews, nil, producer, nil, logger),
	}
	cfg := RouterConfig{
		ServiceName: "marketplace-test",
		CORS:        middleware.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	return &testEnv{
		products: products,
		reviews:  reviews,
		jwt:      jwt,
		router:   NewRouter(svcs, jwt.TokenValidator(), health.NewHandler(), cfg, logger),
	}
}

func (e *testEnv) token(t *testing.T, actor domain.Actor) string {
	t.Helper()
	tok, err := e.jwt.GenerateToken(actor.ID, actor.Role, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request as actor. The zero actor sends no Authorization header.
func (e *testEnv) do(t *testing.T, method, path string, body any, actor domain.Actor) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !actor.IsAnonymous() {
		req.Header.Set("Authorization", "Bearer "+e.token(t, actor))
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// envelope is the decoded response body.
type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	TotalCount int             `json:"total_count"`
	Error      *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func sampleProduct(status string) *domain.Product {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := &domain.Product{
		ID:             testProductID,
		SellerID:       sellerActor.ID,
		SKU:            "SKU-0A1B2C3D",
		Name:           "Desk lamp",
		Description:    "Warm light",
		Category:       "Home",
		Price:          4999,
		Stock:          12,
		Images:         []domain.ProductImage{},
		Variants:       []domain.ProductVariant{},
		Tags:           []string{},
		ApprovalStatus: domain.ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == domain.ApprovalApproved {
		domain.Approve(p, nil, now)
	}
	return p
}

func sampleReview() *domain.Review {
	return &domain.Review{
		ID:               testReviewID,
		ProductID:        testProductID,
		UserID:           customerActor.ID,
		Rating:           4,
		Title:            "Nice",
		Aspects:          []domain.ReviewAspect{},
		Images:           []string{},
		VerifiedPurchase: true,
	}
}

func newRequest(method, path, authorization string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}
