package models

// DefaultPageSize is used when a pagination request carries no size.
const DefaultPageSize = 20

// PaginationOptions describes a requested page. Either Page/PageSize or the
// explicit inclusive From/To offsets may be set; explicit offsets win.
type PaginationOptions struct {
	Page     int
	PageSize int
	From     *int
	To       *int
}

// Resolve computes the offset/limit pair sent to the REST layer.
func (p PaginationOptions) Resolve() (offset, limit int) {
	if p.From != nil && p.To != nil {
		return *p.From, *p.To - *p.From + 1
	}

	page := p.Page
	if page < 1 {
		page = 1
	}
	size := p.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	return (page - 1) * size, size
}

// Pagination is the metadata derived for a returned page. Total is nil when
// the count query failed; HasNextPage is then approximated from whether a
// full page came back.
type Pagination struct {
	Page            int    `json:"page"`
	PageSize        int    `json:"page_size"`
	From            int    `json:"from"`
	To              int    `json:"to"`
	Total           *int64 `json:"total,omitempty"`
	HasNextPage     bool   `json:"has_next_page"`
	HasPreviousPage bool   `json:"has_previous_page"`
}

// PaginatedTransactions pairs a page of transactions with its metadata.
type PaginatedTransactions struct {
	Data       []Transaction `json:"data"`
	Pagination Pagination    `json:"pagination"`
}
