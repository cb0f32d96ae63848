package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

const reviewColumns = `id, product_id, user_id, rating, title, body, aspects, images,
	helpful_votes, not_helpful_votes, verified_purchase, created_at, updated_at`

const (
	lockReviewedProductSQL = `SELECT id FROM products WHERE id = $1 FOR UPDATE`

	lockProductForReviewSQL = `SELECT seller_id, approval_status FROM products WHERE id = $1 FOR UPDATE`

	reviewExistsSQL = `SELECT EXISTS (SELECT 1 FROM reviews WHERE product_id = $1 AND user_id = $2)`

	insertReviewSQL = `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	reviewProductIDSQL = `SELECT product_id FROM reviews WHERE id = $1`

	selectReviewSQL = `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	updateReviewSQL = `
		UPDATE reviews
		SET rating = $1, title = $2, body = $3, aspects = $4, images = $5, updated_at = $6
		WHERE id = $7`

	deleteReviewSQL = `DELETE FROM reviews WHERE id = $1`

	ratingTotalsSQL = `SELECT COUNT(*), COALESCE(SUM(rating), 0) FROM reviews WHERE product_id = $1`

	writeRatingSQL = `UPDATE products SET rating_average = $1, rating_count = $2 WHERE id = $3`

	listProductReviewsSQL = `
		SELECT ` + reviewColumns + `, count(*) OVER() AS total_count
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	listSellerReviewsSQL = `
		SELECT r.id, r.product_id, r.user_id, r.rating, r.title, r.body, r.aspects, r.images,
		       r.helpful_votes, r.not_helpful_votes, r.verified_purchase, r.created_at, r.updated_at,
		       p.name, count(*) OVER() AS total_count
		FROM reviews r
		JOIN products p ON p.id = r.product_id
		WHERE p.seller_id = $1
		ORDER BY r.created_at DESC, r.id
		LIMIT $2 OFFSET $3`
)

var voteColumn = map[string]string{
	domain.VoteHelpful:    "helpful_votes",
	domain.VoteNotHelpful: "not_helpful_votes",
}

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
// Writes serialize per product on the product row lock, so the rating
// summary written back always matches the committed review set.
type ReviewRepository struct {
	db database.DBTX
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(db database.DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review and refreshes the product's rating summary. check
// sees the locked product before anything is written.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review, check repository.ProductCheck) (summary domain.RatingSummary, err error) {
	ctx, end := database.TraceQuery(ctx, "CreateReview", insertReviewSQL)
	defer func() { end(err) }()

	aspects, err := encodeAspects(rv.Aspects)
	if err != nil {
		return summary, err
	}

	err = database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		product := domain.Product{ID: rv.ProductID}
		if err := tx.QueryRow(ctx, lockProductForReviewSQL, rv.ProductID).Scan(&product.SellerID, &product.ApprovalStatus); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("product", rv.ProductID)
			}
			return fmt.Errorf("lock product: %w", err)
		}
		if check != nil {
			if err := check(&product); err != nil {
				return err
			}
		}

		var exists bool
		if err := tx.QueryRow(ctx, reviewExistsSQL, rv.ProductID, rv.UserID).Scan(&exists); err != nil {
			return fmt.Errorf("check existing review: %w", err)
		}
		if exists {
			return apperrors.Conflict("you have already reviewed this product")
		}

		if _, err := tx.Exec(ctx, insertReviewSQL,
			rv.ID,
			rv.ProductID,
			rv.UserID,
			rv.Rating,
			rv.Title,
			rv.Body,
			aspects,
			nonNilTags(rv.Images),
			rv.HelpfulVotes,
			rv.NotHelpfulVotes,
			rv.VerifiedPurchase,
			rv.CreatedAt,
			rv.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return apperrors.Conflict("you have already reviewed this product")
			}
			return fmt.Errorf("insert review: %w", err)
		}

		s, err := recomputeRating(ctx, tx, rv.ProductID)
		if err != nil {
			return err
		}
		summary = s
		return nil
	})
	if err != nil {
		return domain.RatingSummary{}, err
	}
	return summary, nil
}

// Update applies fn to the review under the product lock, writes its content
// fields and refreshes the product's rating summary.
func (r *ReviewRepository) Update(ctx context.Context, id string, fn repository.ReviewMutator) (updated *domain.Review, summary domain.RatingSummary, err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateReview", updateReviewSQL)
	defer func() { end(err) }()

	err = database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		rv, err := loadReviewForWrite(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(rv); err != nil {
			return err
		}

		aspects, err := encodeAspects(rv.Aspects)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateReviewSQL,
			rv.Rating,
			rv.Title,
			rv.Body,
			aspects,
			nonNilTags(rv.Images),
			rv.UpdatedAt,
			rv.ID,
		); err != nil {
			return fmt.Errorf("update review: %w", err)
		}

		if summary, err = recomputeRating(ctx, tx, rv.ProductID); err != nil {
			return err
		}
		updated = rv
		return nil
	})
	if err != nil {
		return nil, domain.RatingSummary{}, err
	}
	return updated, summary, nil
}

// Delete removes the review once check accepts it and refreshes the
// product's rating summary.
func (r *ReviewRepository) Delete(ctx context.Context, id string, check repository.ReviewMutator) (deleted *domain.Review, summary domain.RatingSummary, err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteReview", deleteReviewSQL)
	defer func() { end(err) }()

	err = database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		rv, err := loadReviewForWrite(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := check(rv); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, deleteReviewSQL, id); err != nil {
			return fmt.Errorf("delete review: %w", err)
		}

		if summary, err = recomputeRating(ctx, tx, rv.ProductID); err != nil {
			return err
		}
		deleted = rv
		return nil
	})
	if err != nil {
		return nil, domain.RatingSummary{}, err
	}
	return deleted, summary, nil
}

// Vote increments a vote counter in a single statement. It never touches the
// rating summary.
func (r *ReviewRepository) Vote(ctx context.Context, id, voteType string) (rv *domain.Review, err error) {
	column, ok := voteColumn[voteType]
	if !ok {
		return nil, apperrors.InvalidInput("voteType must be one of: helpful notHelpful")
	}

	query := fmt.Sprintf(`UPDATE reviews SET %[1]s = %[1]s + 1 WHERE id = $1 RETURNING %[2]s`, column, reviewColumns)
	ctx, end := database.TraceQuery(ctx, "VoteReview", query)
	defer func() { end(err) }()

	return scanReviewRow(r.db.QueryRow(ctx, query, id), id)
}

// ListByProduct returns paginated reviews for a product along with the total count.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, page, perPage int) (reviews []domain.Review, total int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListProductReviews", listProductReviewsSQL)
	defer func() { end(err) }()

	limit, offset := pageWindow(page, perPage)
	rows, err := r.db.Query(ctx, listProductReviewsSQL, productID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews = []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, total, nil
}

// ListBySeller returns paginated reviews across the seller's products.
func (r *ReviewRepository) ListBySeller(ctx context.Context, sellerID string, page, perPage int) (reviews []domain.SellerReview, total int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListSellerReviews", listSellerReviewsSQL)
	defer func() { end(err) }()

	limit, offset := pageWindow(page, perPage)
	rows, err := r.db.Query(ctx, listSellerReviewsSQL, sellerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list seller reviews: %w", err)
	}
	defer rows.Close()

	reviews = []domain.SellerReview{}
	for rows.Next() {
		var productName string
		rv, err := scanReview(rows, &productName, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, domain.SellerReview{Review: *rv, ProductName: productName})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, total, nil
}

func lockReviewedProduct(ctx context.Context, tx pgx.Tx, productID string) error {
	var id string
	if err := tx.QueryRow(ctx, lockReviewedProductSQL, productID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock product: %w", err)
	}
	return nil
}

// loadReviewForWrite takes the owning product's row lock before reading the
// review, the same order Create uses.
func loadReviewForWrite(ctx context.Context, tx pgx.Tx, id string) (*domain.Review, error) {
	var productID string
	if err := tx.QueryRow(ctx, reviewProductIDSQL, id).Scan(&productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review product: %w", err)
	}

	if err := lockReviewedProduct(ctx, tx, productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, err
	}

	return scanReviewRow(tx.QueryRow(ctx, selectReviewSQL, id), id)
}

// recomputeRating derives the product's summary from its surviving reviews
// and writes it back.
func recomputeRating(ctx context.Context, tx pgx.Tx, productID string) (domain.RatingSummary, error) {
	var (
		count int
		sum   int64
	)
	if err := tx.QueryRow(ctx, ratingTotalsSQL, productID).Scan(&count, &sum); err != nil {
		return domain.RatingSummary{}, fmt.Errorf("sum ratings: %w", err)
	}

	summary := domain.ComputeRating(count, sum)
	if _, err := tx.Exec(ctx, writeRatingSQL, summary.Average, summary.Count, productID); err != nil {
		return domain.RatingSummary{}, fmt.Errorf("write rating summary: %w", err)
	}
	return summary, nil
}

func scanReviewRow(row pgx.Row, id string) (*domain.Review, error) {
	rv, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}
	return rv, nil
}

func scanReview(row pgx.Row, extra ...any) (*domain.Review, error) {
	var rv domain.Review
	var aspects []byte

	dest := []any{
		&rv.ID,
		&rv.ProductID,
		&rv.UserID,
		&rv.Rating,
		&rv.Title,
		&rv.Body,
		&aspects,
		&rv.Images,
		&rv.HelpfulVotes,
		&rv.NotHelpfulVotes,
		&rv.VerifiedPurchase,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(aspects, &rv.Aspects); err != nil {
		return nil, fmt.Errorf("unmarshal aspects: %w", err)
	}
	if rv.Aspects == nil {
		rv.Aspects = []domain.ReviewAspect{}
	}
	rv.Images = nonNilTags(rv.Images)

	return &rv, nil
}

func encodeAspects(aspects []domain.ReviewAspect) ([]byte, error) {
	if aspects == nil {
		aspects = []domain.ReviewAspect{}
	}
	data, err := json.Marshal(aspects)
	if err != nil {
		return nil, fmt.Errorf("marshal aspects: %w", err)
	}
	return data, nil
}

// pageWindow converts page/per-page into LIMIT and OFFSET, clamped the same
// way as request parameters.
func pageWindow(page, perPage int) (limit, offset int) {
	p := pagination.New(page, perPage)
	return p.PerPage, p.Offset
}
