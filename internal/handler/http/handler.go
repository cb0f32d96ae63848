package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/validator"
)

// actorFrom returns the caller decoded by the auth middleware. Requests that
// carried no token yield the anonymous actor.
func actorFrom(r *http.Request) domain.Actor {
	return domain.Actor{
		ID:   middleware.SubjectIDFromContext(r.Context()),
		Role: middleware.RoleFromContext(r.Context()),
	}
}

// decodeBody decodes and validates a JSON request body. It writes the 400
// response itself and reports false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		httputil.WriteValidationError(w, r, err)
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody for endpoints whose body may be omitted.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := validator.DecodeAndValidate(r, dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	httputil.WriteValidationError(w, r, err)
	return false
}

func writeParamError(w http.ResponseWriter, r *http.Request, message string) {
	httputil.WriteErrorCode(w, r, http.StatusBadRequest, "INVALID_PARAMETER", message)
}

// queryString returns a pointer to a non-empty query value.
func queryString(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}

// queryInt64 parses an optional integer query value.
func queryInt64(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func deleted(id string) map[string]string {
	return map[string]string{"id": id, "status": "deleted"}
}
