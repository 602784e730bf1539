package httpapi

import (
	"net/http"
	"strconv"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// pageParams is the skip/limit pair every list endpoint accepts (spec
// §4.10 "Pagination... wraps list endpoints").
type pageParams struct {
	Skip  int
	Limit int
}

func parsePageParams(r *http.Request) pageParams {
	p := pageParams{Skip: 0, Limit: defaultLimit}
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("skip")); err == nil && v >= 0 {
		p.Skip = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// page wraps a page of items with the total/has_next/has_previous
// envelope used by every list endpoint.
type page struct {
	Items        any  `json:"items"`
	Total        int  `json:"total"`
	Skip         int  `json:"skip"`
	Limit        int  `json:"limit"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
}

// paginate slices items according to p and builds its page envelope.
func paginate[T any](items []T, p pageParams) page {
	total := len(items)
	start := p.Skip
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return page{
		Items:       items[start:end],
		Total:       total,
		Skip:        p.Skip,
		Limit:       p.Limit,
		HasNext:     end < total,
		HasPrevious: start > 0,
	}
}
