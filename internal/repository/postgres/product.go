package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const productColumns = `id, seller_id, sku, name, description, brand, category, subcategory,
	price, discount, stock, images, variants, tags, specifications, is_featured,
	approval_status, approval_date, approval_note, rating_average, rating_count,
	created_at, updated_at`

const (
	insertProductSQL = `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23)`

	selectProductSQL = `SELECT ` + productColumns + ` FROM products`

	updateProductSQL = `
		UPDATE products
		SET name = $1, description = $2, brand = $3, category = $4, subcategory = $5,
		    price = $6, discount = $7, stock = $8, images = $9, variants = $10, tags = $11,
		    specifications = $12, is_featured = $13, approval_status = $14,
		    approval_date = $15, approval_note = $16, updated_at = $17
		WHERE id = $18`

	relatedProductsSQL = selectProductSQL + `
		WHERE approval_status = 'approved' AND category = $1 AND id <> $2
		ORDER BY created_at DESC, id
		LIMIT $3`
)

var productOrderBy = map[string]string{
	domain.SortNewest:     "created_at DESC, id",
	domain.SortPriceAsc:   "price ASC, id",
	domain.SortPriceDesc:  "price DESC, id",
	domain.SortNameAsc:    "name ASC, id",
	domain.SortRatingDesc: "rating_average DESC, rating_count DESC, id",
	repository.SortOldest: "created_at ASC, id",
}

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateProduct", insertProductSQL)
	defer func() { end(err) }()

	images, variants, specs, err := encodeProductJSON(p)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, insertProductSQL,
		p.ID,
		p.SellerID,
		p.SKU,
		p.Name,
		p.Description,
		p.Brand,
		p.Category,
		p.Subcategory,
		p.Price,
		p.Discount,
		p.Stock,
		images,
		variants,
		nonNilTags(p.Tags),
		specs,
		p.IsFeatured,
		p.ApprovalStatus,
		p.ApprovalDate,
		p.ApprovalNote,
		p.Ratings.Average,
		p.Ratings.Count,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "sku", p.SKU)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (p *domain.Product, err error) {
	query := selectProductSQL + ` WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "GetProduct", query)
	defer func() { end(err) }()

	return scanProductRow(r.db.QueryRow(ctx, query, id), id)
}

// GetOwned retrieves a product by ID only if sellerID owns it.
func (r *ProductRepository) GetOwned(ctx context.Context, id, sellerID string) (p *domain.Product, err error) {
	query := selectProductSQL + ` WHERE id = $1 AND seller_id = $2`
	ctx, end := database.TraceQuery(ctx, "GetOwnedProduct", query)
	defer func() { end(err) }()

	return scanProductRow(r.db.QueryRow(ctx, query, id, sellerID), id)
}

// List returns products matching the given filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (products []domain.Product, total int, err error) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if filter.ApprovalStatus != nil {
		add("approval_status = ?", *filter.ApprovalStatus)
	}
	if filter.SellerID != nil {
		add("seller_id = ?", *filter.SellerID)
	}
	if filter.Category != nil {
		add("category = ?", *filter.Category)
	}
	if filter.Subcategory != nil {
		add("subcategory = ?", *filter.Subcategory)
	}
	if filter.Search != nil {
		add("(name ILIKE ? OR description ILIKE ?)", "%"+escapeLike(*filter.Search)+"%")
	}
	if filter.MinPrice != nil {
		add("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add("price <= ?", *filter.MaxPrice)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, ok := productOrderBy[filter.SortBy]
	if !ok {
		orderBy = productOrderBy[domain.SortNewest]
	}

	limit, offset := pageWindow(filter.Page, filter.PerPage)

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, orderBy, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products = []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, total, nil
}

// ListRelated returns approved products of the same category, newest first.
func (r *ProductRepository) ListRelated(ctx context.Context, category, excludeID string, limit int) (products []domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "ListRelatedProducts", relatedProductsSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, relatedProductsSQL, category, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}
	defer rows.Close()

	products = []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// Update locks the product row, lets fn modify it and persists the result.
func (r *ProductRepository) Update(ctx context.Context, id string, sellerID *string, fn repository.ProductMutator) (updated *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateProduct", updateProductSQL)
	defer func() { end(err) }()

	err = database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		p, err := lockProduct(ctx, tx, id, sellerID)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}

		images, variants, specs, err := encodeProductJSON(p)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateProductSQL,
			p.Name,
			p.Description,
			p.Brand,
			p.Category,
			p.Subcategory,
			p.Price,
			p.Discount,
			p.Stock,
			images,
			variants,
			nonNilTags(p.Tags),
			specs,
			p.IsFeatured,
			p.ApprovalStatus,
			p.ApprovalDate,
			p.ApprovalNote,
			p.UpdatedAt,
			p.ID,
		); err != nil {
			return fmt.Errorf("update product: %w", err)
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a product from the database by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id string, sellerID *string) (err error) {
	query := `DELETE FROM products WHERE id = $1`
	args := []any{id}
	if sellerID != nil {
		query += ` AND seller_id = $2`
		args = append(args, *sellerID)
	}

	ctx, end := database.TraceQuery(ctx, "DeleteProduct", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

func lockProduct(ctx context.Context, tx pgx.Tx, id string, sellerID *string) (*domain.Product, error) {
	query := selectProductSQL + ` WHERE id = $1`
	args := []any{id}
	if sellerID != nil {
		query += ` AND seller_id = $2`
		args = append(args, *sellerID)
	}
	query += ` FOR UPDATE`

	return scanProductRow(tx.QueryRow(ctx, query, args...), id)
}

func scanProductRow(row pgx.Row, id string) (*domain.Product, error) {
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// scanProduct reads the productColumns of one row, followed by any extra
// destinations such as a window count.
func scanProduct(row pgx.Row, extra ...any) (*domain.Product, error) {
	var p domain.Product
	var images, variants, specs []byte

	dest := []any{
		&p.ID,
		&p.SellerID,
		&p.SKU,
		&p.Name,
		&p.Description,
		&p.Brand,
		&p.Category,
		&p.Subcategory,
		&p.Price,
		&p.Discount,
		&p.Stock,
		&images,
		&variants,
		&p.Tags,
		&specs,
		&p.IsFeatured,
		&p.ApprovalStatus,
		&p.ApprovalDate,
		&p.ApprovalNote,
		&p.Ratings.Average,
		&p.Ratings.Count,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(images, &p.Images); err != nil {
		return nil, fmt.Errorf("unmarshal images: %w", err)
	}
	if err := unmarshalJSONB(variants, &p.Variants); err != nil {
		return nil, fmt.Errorf("unmarshal variants: %w", err)
	}
	if err := unmarshalJSONB(specs, &p.Specifications); err != nil {
		return nil, fmt.Errorf("unmarshal specifications: %w", err)
	}
	if p.Images == nil {
		p.Images = []domain.ProductImage{}
	}
	if p.Variants == nil {
		p.Variants = []domain.ProductVariant{}
	}
	p.Tags = nonNilTags(p.Tags)

	return &p, nil
}

func encodeProductJSON(p *domain.Product) (images, variants, specs []byte, err error) {
	imgs := p.Images
	if imgs == nil {
		imgs = []domain.ProductImage{}
	}
	if images, err = json.Marshal(imgs); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal images: %w", err)
	}

	vars := p.Variants
	if vars == nil {
		vars = []domain.ProductVariant{}
	}
	if variants, err = json.Marshal(vars); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal variants: %w", err)
	}

	sp := p.Specifications
	if sp == nil {
		sp = map[string]string{}
	}
	if specs, err = json.Marshal(sp); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal specifications: %w", err)
	}

	return images, variants, specs, nil
}

func unmarshalJSONB(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// escapeLike escapes LIKE wildcards so user search text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
