package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/marketplace/internal/domain"
	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
	"github.com/utafrali/marketplace/pkg/logger"
)

// Kafka topics for marketplace domain events.
var (
	TopicProductCreated       = pkgkafka.Topic("product", "created")
	TopicProductUpdated       = pkgkafka.Topic("product", "updated")
	TopicProductApproved      = pkgkafka.Topic("product", "approved")
	TopicProductRejected      = pkgkafka.Topic("product", "rejected")
	TopicProductDeleted       = pkgkafka.Topic("product", "deleted")
	TopicProductRatingUpdated = pkgkafka.Topic("product", "rating_updated")
	TopicReviewCreated        = pkgkafka.Topic("review", "created")
	TopicReviewUpdated        = pkgkafka.Topic("review", "updated")
	TopicReviewDeleted        = pkgkafka.Topic("review", "deleted")
)

// Aggregate type constants.
const (
	AggregateTypeProduct = "product"
	AggregateTypeReview  = "review"
)

// SourceMarketplace identifies events originating from this service.
const SourceMarketplace = "marketplace-service"

// Publisher writes an event to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

type discard struct{}

func (discard) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// Discard drops every event. It stands in for Kafka when KAFKA_ENABLED is false.
var Discard Publisher = discard{}

// ProductData is the payload of product lifecycle events.
type ProductData struct {
	ID             string     `json:"id"`
	SellerID       string     `json:"seller_id"`
	SKU            string     `json:"sku"`
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	Price          int64      `json:"price"`
	Stock          int        `json:"stock"`
	ApprovalStatus string     `json:"approval_status"`
	ApprovalNote   *string    `json:"approval_note,omitempty"`
	ApprovalDate   *time.Time `json:"approval_date,omitempty"`
	ApprovalReset  bool       `json:"approval_reset,omitempty"`
}

// ProductDeletedData is the payload for a product.deleted event.
type ProductDeletedData struct {
	ID        string `json:"id"`
	DeletedBy string `json:"deleted_by"`
	ByRole    string `json:"by_role"`
}

// ReviewData is the payload of review lifecycle events.
type ReviewData struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	Rating    int    `json:"rating"`
}

// RatingUpdatedData is the payload for a product.rating_updated event.
type RatingUpdatedData struct {
	ProductID string  `json:"product_id"`
	Average   float64 `json:"average"`
	Count     int     `json:"count"`
}

// Producer publishes marketplace domain events.
type Producer struct {
	pub    Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. A nil publisher discards events.
func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	if pub == nil {
		pub = Discard
	}
	return &Producer{
		pub:    pub,
		logger: logger,
	}
}

func productData(p *domain.Product) ProductData {
	return ProductData{
		ID:             p.ID,
		SellerID:       p.SellerID,
		SKU:            p.SKU,
		Name:           p.Name,
		Category:       p.Category,
		Price:          p.Price,
		Stock:          p.Stock,
		ApprovalStatus: p.ApprovalStatus,
		ApprovalNote:   p.ApprovalNote,
		ApprovalDate:   p.ApprovalDate,
	}
}

// PublishProductCreated publishes a product.created event.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, AggregateTypeProduct, productData(product))
}

// PublishProductUpdated publishes a product.updated event. approvalReset
// tells consumers the edit sent the product back to pending.
func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product, approvalReset bool) error {
	data := productData(product)
	data.ApprovalReset = approvalReset
	return p.publish(ctx, TopicProductUpdated, product.ID, AggregateTypeProduct, data)
}

// PublishProductDecision publishes product.approved or product.rejected
// depending on the product's current status.
func (p *Producer) PublishProductDecision(ctx context.Context, product *domain.Product) error {
	topic := TopicProductApproved
	if product.ApprovalStatus == domain.ApprovalRejected {
		topic = TopicProductRejected
	}
	return p.publish(ctx, topic, product.ID, AggregateTypeProduct, productData(product))
}

// PublishProductDeleted publishes a product.deleted event. Reviews of the
// product are removed with it and get no events of their own.
func (p *Producer) PublishProductDeleted(ctx context.Context, productID string, by domain.Actor) error {
	data := ProductDeletedData{ID: productID, DeletedBy: by.ID, ByRole: by.Role}
	return p.publish(ctx, TopicProductDeleted, productID, AggregateTypeProduct, data)
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	return p.publishReview(ctx, TopicReviewCreated, review)
}

// PublishReviewUpdated publishes a review.updated event.
func (p *Producer) PublishReviewUpdated(ctx context.Context, review *domain.Review) error {
	return p.publishReview(ctx, TopicReviewUpdated, review)
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, review *domain.Review) error {
	return p.publishReview(ctx, TopicReviewDeleted, review)
}

// PublishRatingUpdated publishes a product.rating_updated event.
func (p *Producer) PublishRatingUpdated(ctx context.Context, productID string, summary domain.RatingSummary) error {
	data := RatingUpdatedData{ProductID: productID, Average: summary.Average, Count: summary.Count}
	return p.publish(ctx, TopicProductRatingUpdated, productID, AggregateTypeProduct, data)
}

func (p *Producer) publishReview(ctx context.Context, topic string, review *domain.Review) error {
	data := ReviewData{ID: review.ID, ProductID: review.ProductID, UserID: review.UserID, Rating: review.Rating}
	return p.publish(ctx, topic, review.ID, AggregateTypeReview, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceMarketplace, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.pub.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
