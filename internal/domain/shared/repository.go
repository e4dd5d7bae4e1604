package shared

// Filter represents query filter options
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
	Filters  map[string]any

	// IncludeInactive also returns rows that were soft deleted.
	IncludeInactive bool
	// AllBranches drops the branch constraint for branch-scoped entities.
	// The tenant constraint is never dropped.
	AllBranches bool
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Filters:  make(map[string]any),
	}
}

// Where adds an equality condition and returns the filter for chaining
func (f Filter) Where(column string, value any) Filter {
	if f.Filters == nil {
		f.Filters = make(map[string]any)
	} else {
		copied := make(map[string]any, len(f.Filters)+1)
		for k, v := range f.Filters {
			copied[k] = v
		}
		f.Filters = copied
	}
	f.Filters[column] = value
	return f
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	if pageSize <= 0 {
		pageSize = 1
	}
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
