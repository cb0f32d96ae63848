package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/pkg/health"
	"github.com/utafrali/marketplace/pkg/middleware"
)

// RouterConfig holds the edge settings applied by NewRouter.
type RouterConfig struct {
	ServiceName string
	CORS        middleware.CORSConfig
	RateLimit   middleware.RateLimitConfig
}

// Services bundles the services the router exposes.
type Services struct {
	Products  *service.ProductService
	Approvals *service.ApprovalService
	Reviews   *service.ReviewService
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(
	svcs Services,
	validate middleware.TokenValidator,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	productHandler := NewProductHandler(svcs.Products, logger)
	adminHandler := NewAdminHandler(svcs.Approvals, logger)
	reviewHandler := NewReviewHandler(svcs.Reviews, logger)

	limited := middleware.RateLimit(cfg.RateLimit)
	requireAuth := middleware.Auth(validate)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		// Public catalog
		r.Route("/products", func(r chi.Router) {
			r.With(middleware.OptionalAuth(validate)).Get("/", productHandler.ListProducts)
			r.With(middleware.OptionalAuth(validate)).Get("/{id}", productHandler.GetProduct)
			r.Get("/{id}/related", productHandler.ListRelated)
		})

		// Seller catalog
		r.Route("/sellers/products", func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireRole(domain.RoleSeller))

			r.Get("/", productHandler.ListSellerProducts)
			r.Get("/{id}", productHandler.GetSellerProduct)
			r.With(limited).Post("/", productHandler.CreateProduct)
			r.With(limited).Put("/{id}", productHandler.UpdateProduct)
			r.With(limited).Delete("/{id}", productHandler.DeleteProduct)
		})

		// Admin approval workflow
		r.Route("/admin/products", func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireRole(domain.RoleAdmin))

			r.Get("/pending", adminHandler.ListPending)
			r.With(limited).Put("/{id}/approve", adminHandler.Approve)
			r.With(limited).Put("/{id}/reject", adminHandler.Reject)
			r.With(limited).Put("/{id}", productHandler.UpdateProduct)
			r.With(limited).Delete("/{id}", productHandler.DeleteProduct)
		})

		// Reviews
		r.Route("/reviews", func(r chi.Router) {
			r.Get("/product/{productId}", reviewHandler.ListProductReviews)
			r.With(requireAuth, middleware.RequireRole(domain.RoleSeller)).
				Get("/seller/products", reviewHandler.ListSellerReviews)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, limited)

				r.Post("/", reviewHandler.CreateReview)
				r.Put("/{reviewId}", reviewHandler.UpdateReview)
				r.Delete("/{reviewId}", reviewHandler.DeleteReview)
				r.Post("/{reviewId}/vote", reviewHandler.VoteReview)
			})
		})
	})

	return r
}
