package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is used when the client omits limit.
	DefaultLimit = 10
	// MaxLimit caps limit to prevent unbounded queries.
	MaxLimit = 100
)

var (
	ErrInvalidPage      = errors.New("pagination: invalid page")
	ErrInvalidLimit     = errors.New("pagination: invalid limit")
	ErrInvalidSortBy    = errors.New("pagination: invalid sortBy")
	ErrInvalidSortOrder = errors.New("pagination: invalid sortOrder")
)

// Params is the normalised page/limit/sort request.
type Params struct {
	Page     int
	Limit    int
	SortBy   string
	SortDesc bool
}

// Options control Parse for one endpoint.
type Options struct {
	DefaultSortBy    string
	DefaultSortDesc  bool
	AllowedSortField []string
}

// Parse reads page, limit, sortBy and sortOrder from the query string.
// Out of range page and limit values are rejected rather than clamped.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}
	params := Params{
		Page:     1,
		Limit:    DefaultLimit,
		SortBy:   opts.DefaultSortBy,
		SortDesc: opts.DefaultSortDesc,
	}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return Params{}, fmt.Errorf("%w: %q", ErrInvalidPage, raw)
		}
		params.Page = page
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLimit {
			return Params{}, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidLimit, MaxLimit)
		}
		params.Limit = limit
	}
	if raw := strings.TrimSpace(values.Get("sortBy")); raw != "" {
		field, ok := allowedField(raw, opts.AllowedSortField)
		if !ok {
			return Params{}, fmt.Errorf("%w: %q", ErrInvalidSortBy, raw)
		}
		params.SortBy = field
	}
	if raw := strings.TrimSpace(values.Get("sortOrder")); raw != "" {
		switch strings.ToLower(raw) {
		case "asc":
			params.SortDesc = false
		case "desc":
			params.SortDesc = true
		default:
			return Params{}, fmt.Errorf("%w: %q", ErrInvalidSortOrder, raw)
		}
	}
	return params, nil
}

// Normalize clamps page and limit into the supported range.
func Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Offset returns the number of items skipped before page.
func Offset(page, limit int) int {
	page, limit = Normalize(page, limit)
	return (page - 1) * limit
}

// TotalPages returns ceil(total/limit).
func TotalPages(total, limit int) int {
	if total <= 0 {
		return 0
	}
	_, limit = Normalize(1, limit)
	return (total + limit - 1) / limit
}

func allowedField(raw string, allowed []string) (string, bool) {
	for _, field := range allowed {
		if strings.EqualFold(field, raw) {
			return field, true
		}
	}
	return "", false
}
