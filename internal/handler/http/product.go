package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// ProductHandler handles the public catalog and the seller's own catalog.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ImageRequest is a product image in a request body.
type ImageRequest struct {
	URL     string `json:"url" validate:"required,url"`
	AltText string `json:"altText" validate:"max=200"`
}

// VariantRequest is a product variant in a request body.
type VariantRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	SKU   string `json:"sku" validate:"max=64"`
	Price int64  `json:"price" validate:"gte=0"`
	Stock int    `json:"stock" validate:"gte=0"`
}

// CreateProductRequest is the JSON request body for creating a product.
type CreateProductRequest struct {
	SKU            string            `json:"sku" validate:"max=64"`
	Name           string            `json:"name" validate:"required,min=1,max=200"`
	Description    string            `json:"description" validate:"max=5000"`
	Brand          string            `json:"brand" validate:"max=100"`
	Category       string            `json:"category" validate:"required,max=100"`
	Subcategory    string            `json:"subcategory" validate:"max=100"`
	Price          int64             `json:"price" validate:"gte=0"`
	Discount       int               `json:"discount" validate:"gte=0,lte=100"`
	Stock          int               `json:"stock" validate:"gte=0"`
	Images         []ImageRequest    `json:"images" validate:"max=10,dive"`
	Variants       []VariantRequest  `json:"variants" validate:"max=50,dive"`
	Tags           []string          `json:"tags" validate:"max=20,dive,max=50"`
	Specifications map[string]string `json:"specifications"`
	IsFeatured     bool              `json:"isFeatured"`
}

// UpdateProductRequest is the JSON request body for editing a product. All
// fields are optional. Approval and rating fields are not accepted.
type UpdateProductRequest struct {
	Name           *string            `json:"name" validate:"omitempty,min=1,max=200"`
	Description    *string            `json:"description" validate:"omitempty,max=5000"`
	Brand          *string            `json:"brand" validate:"omitempty,max=100"`
	Category       *string            `json:"category" validate:"omitempty,min=1,max=100"`
	Subcategory    *string            `json:"subcategory" validate:"omitempty,max=100"`
	Price          *int64             `json:"price" validate:"omitempty,gte=0"`
	Discount       *int               `json:"discount" validate:"omitempty,gte=0,lte=100"`
	Stock          *int               `json:"stock" validate:"omitempty,gte=0"`
	Images         *[]ImageRequest    `json:"images" validate:"omitempty,max=10,dive"`
	Variants       *[]VariantRequest  `json:"variants" validate:"omitempty,max=50,dive"`
	Tags           *[]string          `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Specifications *map[string]string `json:"specifications"`
	IsFeatured     *bool              `json:"isFeatured"`
}

func toImages(in []ImageRequest) []domain.ProductImage {
	out := make([]domain.ProductImage, 0, len(in))
	for _, img := range in {
		out = append(out, domain.ProductImage{URL: img.URL, AltText: img.AltText})
	}
	return out
}

func toVariants(in []VariantRequest) []domain.ProductVariant {
	out := make([]domain.ProductVariant, 0, len(in))
	for _, v := range in {
		out = append(out, domain.ProductVariant{Name: v.Name, SKU: v.SKU, Price: v.Price, Stock: v.Stock})
	}
	return out
}

// Patch converts the request into a domain patch.
func (req UpdateProductRequest) Patch() domain.ProductPatch {
	patch := domain.ProductPatch{
		Name:           req.Name,
		Description:    req.Description,
		Brand:          req.Brand,
		Category:       req.Category,
		Subcategory:    req.Subcategory,
		Price:          req.Price,
		Discount:       req.Discount,
		Stock:          req.Stock,
		Tags:           req.Tags,
		Specifications: req.Specifications,
		IsFeatured:     req.IsFeatured,
	}
	if req.Images != nil {
		images := toImages(*req.Images)
		patch.Images = &images
	}
	if req.Variants != nil {
		variants := toVariants(*req.Variants)
		patch.Variants = &variants
	}
	return patch
}

// --- Public catalog ---

// ListProducts handles GET /api/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	in := service.ListProductsInput{
		Category:    queryString(r, "category"),
		Subcategory: queryString(r, "subcategory"),
		Search:      queryString(r, "search"),
		SortBy:      r.URL.Query().Get("sort_by"),
		Page:        params.Page,
		PerPage:     params.PerPage,
	}

	var err error
	if in.MinPrice, err = queryInt64(r, "min_price"); err != nil {
		writeParamError(w, r, "min_price must be a valid number")
		return
	}
	if in.MaxPrice, err = queryInt64(r, "max_price"); err != nil {
		writeParamError(w, r, "max_price must be a valid number")
		return
	}
	if v := r.URL.Query().Get("include_all"); v != "" {
		if in.IncludeAll, err = strconv.ParseBool(v); err != nil {
			writeParamError(w, r, "include_all must be true or false")
			return
		}
	}

	products, total, err := h.service.ListProducts(r.Context(), actorFrom(r), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, products, total, params)
}

// GetProduct handles GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "product", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), actorFrom(r), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// ListRelated handles GET /api/products/{id}/related
func (h *ProductHandler) ListRelated(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "product", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	limit := pagination.Limit(r, "limit", service.DefaultRelatedLimit, service.MaxRelatedLimit)
	products, err := h.service.ListRelated(r.Context(), id.String(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, products)
}

// --- Seller catalog ---

// ListSellerProducts handles GET /api/sellers/products
func (h *ProductHandler) ListSellerProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	products, total, err := h.service.ListSellerProducts(r.Context(), actorFrom(r), service.SellerListInput{
		ApprovalStatus: queryString(r, "approval_status"),
		Category:       queryString(r, "category"),
		Search:         queryString(r, "search"),
		SortBy:         r.URL.Query().Get("sort_by"),
		Page:           params.Page,
		PerPage:        params.PerPage,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, products, total, params)
}

// GetSellerProduct handles GET /api/sellers/products/{id}
func (h *ProductHandler) GetSellerProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "product", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.GetSellerProduct(r.Context(), actorFrom(r), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/sellers/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	product, err := h.service.CreateProduct(r.Context(), actorFrom(r), service.CreateProductInput{
		SKU:            req.SKU,
		Name:           req.Name,
		Description:    req.Description,
		Brand:          req.Brand,
		Category:       req.Category,
		Subcategory:    req.Subcategory,
		Price:          req.Price,
		Discount:       req.Discount,
		Stock:          req.Stock,
		Images:         toImages(req.Images),
		Variants:       toVariants(req.Variants),
		Tags:           req.Tags,
		Specifications: req.Specifications,
		IsFeatured:     req.IsFeatured,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/sellers/products/{id} and
// PUT /api/admin/products/{id}. The service scopes sellers to their own
// products.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "product", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), actorFrom(r), id.String(), req.Patch())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/sellers/products/{id} and
// DELETE /api/admin/products/{id}.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "product", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), actorFrom(r), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, deleted(id.String()))
}
