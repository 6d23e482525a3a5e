package models

// SortOrder controls list ordering on the backend.
type SortOrder string

const (
	SortNewest SortOrder = "desc"
	SortOldest SortOrder = "asc"
)

// ListParams is the remote list call contract: {page, limit, status?,
// search?, sortOrder?, category?}.
type ListParams struct {
	Page      int       `json:"page"`
	Limit     int       `json:"limit"`
	Status    Status    `json:"status,omitempty"`
	Search    string    `json:"search,omitempty"`
	SortOrder SortOrder `json:"sort_order,omitempty"`
	Category  Category  `json:"category,omitempty"`
}

// Pagination is the backend's authoritative paging metadata.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
}

// EntityPage is one page of workflow entities as returned by the backend.
type EntityPage struct {
	Items      []WorkflowEntity `json:"items"`
	Pagination Pagination       `json:"pagination"`
}
