package tenant

import (
	"strings"
)

// DeletePolicy declares what Delete does for an entity type.
// The zero value is a hard delete.
type DeletePolicy struct {
	soft          bool
	column        string
	inactiveValue any
}

// HardDelete removes the row.
func HardDelete() DeletePolicy {
	return DeletePolicy{}
}

// SoftDelete moves the row to an inactive state by writing inactiveValue
// into column. Soft-deleted rows are hidden from Find unless requested.
func SoftDelete(column string, inactiveValue any) DeletePolicy {
	return DeletePolicy{soft: true, column: column, inactiveValue: inactiveValue}
}

// IsSoft reports whether the policy keeps the row.
func (p DeletePolicy) IsSoft() bool { return p.soft }

// Column returns the status column of a soft delete.
func (p DeletePolicy) Column() string { return p.column }

// InactiveValue returns the value written by a soft delete.
func (p DeletePolicy) InactiveValue() any { return p.inactiveValue }

// EntityDescriptor declares how an entity type is scoped.
type EntityDescriptor struct {
	// Name is used in errors and logs, e.g. "purchase order".
	Name string
	// BranchScoped entities are filtered and stamped by branch when the
	// request carries one.
	BranchScoped bool
	// Delete selects soft or hard delete.
	Delete DeletePolicy
	// SortFields is the allow list for Filter.OrderBy.
	SortFields map[string]bool
	// DefaultSort is used when OrderBy is empty or not allowed.
	DefaultSort string
	// SearchColumns are matched case-insensitively against Filter.Search.
	SearchColumns []string
}

// Columns that callers can never write through Update.
var immutableColumns = map[string]bool{
	"id":         true,
	"tenant_id":  true,
	"branch_id":  true,
	"created_at": true,
	"created_by": true,
}

// Ownership columns that Find replaces with the request scope.
const (
	tenantColumn = "tenant_id"
	branchColumn = "branch_id"
)

// CommonSortFields contains fields present on every scoped table
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// MergeSortFields returns CommonSortFields plus extra.
func MergeSortFields(extra ...string) map[string]bool {
	out := make(map[string]bool, len(CommonSortFields)+len(extra))
	for k := range CommonSortFields {
		out[k] = true
	}
	for _, f := range extra {
		out[f] = true
	}
	return out
}

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}
