package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// AdminHandler handles the approval queue and admin decisions.
type AdminHandler struct {
	service *service.ApprovalService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc *service.ApprovalService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: svc,
		logger:  logger,
	}
}

// DecisionRequest is the body of approve and reject. The note is optional
// when approving and mandatory when rejecting.
type DecisionRequest struct {
	Note *string `json:"note" validate:"omitempty,max=1000"`
}

// ListPending handles GET /api/admin/products/pending
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	products, total, err := h.service.ListPending(r.Context(), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, products, total, params)
}

// Approve handles PUT /api/admin/products/{id}/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "product", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req DecisionRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	product, err := h.service.Approve(r.Context(), actorFrom(r), id.String(), req.Note)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// Reject handles PUT /api/admin/products/{id}/reject
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "product", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req DecisionRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	product, err := h.service.Reject(r.Context(), actorFrom(r), id.String(), req.Note)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}
