package model

// Pagination describes one page of a paginated listing.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// NewPagination computes page metadata for the given total, 1-based page
// and page size. page and limit below 1 are clamped to 1.
func NewPagination(total, page, limit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if total < 0 {
		total = 0
	}

	return Pagination{
		Page:       page,
		Limit:      limit,
		Offset:     Offset(page, limit),
		Total:      total,
		TotalPages: TotalPages(total, limit),
		HasMore:    page*limit < total,
	}
}

// Offset returns the number of rows skipped before the given page.
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// TotalPages returns ceil(total/limit); zero rows means zero pages.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// ListMeta is the pagination block of list responses:
// {"limit","offset","total","has_more"}.
type ListMeta struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// Page is the data payload of list endpoints.
type Page[T any] struct {
	Items      []T      `json:"items"`
	Pagination ListMeta `json:"pagination"`
}
