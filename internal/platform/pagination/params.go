package pagination

import (
	"net/url"
	"strconv"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Params captures page-number paging inputs parsed from a query string.
type Params struct {
	Page  int
	Limit int
}

// DefaultParams returns the paging defaults applied when the request
// carries no paging hints.
func DefaultParams() Params {
	return Params{Page: 1, Limit: defaultLimit}
}

// FromQuery parses page and limit from URL query values, clamping out-of-range
// inputs rather than rejecting them.
func FromQuery(values url.Values) Params {
	params := DefaultParams()
	if values == nil {
		return params
	}

	if raw := values.Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page > 0 {
			params.Page = page
		}
	}
	if raw := values.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			if limit > maxLimit {
				limit = maxLimit
			}
			params.Limit = limit
		}
	}
	return params
}

// Offset converts the page number into a row offset.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Normalise clamps zero or negative values back to defaults.
func (p Params) Normalise() Params {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}
