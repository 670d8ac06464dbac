package types

// PageRequest selects a page of a listing. Page is 1-based.
type PageRequest struct {
	Page    int
	PerPage int
}

// Offset returns the number of rows skipped before the requested page.
func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Page is one page of a listing plus pagination metadata.
type Page[T any] struct {
	// CurrentPage is the 1-based index of this page.
	CurrentPage int `json:"current_page"`

	// Data holds the items of this page.
	Data []T `json:"data"`

	// From is the 1-based position of the first item on this page,
	// or nil when the page is empty.
	From *int `json:"from"`

	// To is the 1-based position of the last item on this page,
	// or nil when the page is empty.
	To *int `json:"to"`

	// PerPage is the page size used for the listing.
	PerPage int `json:"per_page"`

	// LastPage is the index of the last non-empty page (at least 1).
	LastPage int `json:"last_page"`

	// Total is the number of items matching the listing across all pages.
	Total int `json:"total"`
}

// NewPage assembles a page and derives its metadata.
func NewPage[T any](items []T, req PageRequest, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	page := Page[T]{
		CurrentPage: req.Page,
		Data:        items,
		PerPage:     req.PerPage,
		LastPage:    1,
		Total:       total,
	}
	if req.PerPage > 0 && total > 0 {
		page.LastPage = (total + req.PerPage - 1) / req.PerPage
	}
	if len(items) > 0 {
		from := req.Offset() + 1
		to := req.Offset() + len(items)
		page.From = &from
		page.To = &to
	}
	return page
}
