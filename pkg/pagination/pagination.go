package pagination

import (
	"math"
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100

	// MaxPage keeps (page-1)*per_page inside a PostgreSQL integer OFFSET.
	MaxPage = math.MaxInt32 / MaxPerPage
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns the first page with the default page size.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// New builds Params from raw values, clamping page to [1, MaxPage] and
// per-page to [1, MaxPerPage]. Non-positive per-page falls back to the default.
func New(page, perPage int) Params {
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	switch {
	case perPage < 1:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage, Offset: (page - 1) * perPage}
}

// FromRequest extracts page and per_page from the query string.
// Unparseable values fall back to the defaults.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	return New(intOr(q.Get("page"), 1), intOr(q.Get("per_page"), DefaultPerPage))
}

// TotalPages returns the number of pages needed for total items.
func (p Params) TotalPages(total int) int {
	if p.PerPage <= 0 {
		return 0
	}
	pages := total / p.PerPage
	if total%p.PerPage > 0 {
		pages++
	}
	return pages
}

// HasNext reports whether another page follows the current one.
func (p Params) HasNext(total int) bool {
	return p.Page < p.TotalPages(total)
}

// Limit reads an integer query parameter bounded to [1, max], returning def
// when it is absent or invalid.
func Limit(r *http.Request, key string, def, max int) int {
	v := intOr(r.URL.Query().Get(key), def)
	if v < 1 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func intOr(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
