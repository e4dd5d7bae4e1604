package tenancy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/erp/mfgerp/internal/domain/shared"
)

// BranchHeaders lists the accepted branch header names in priority order.
var BranchHeaders = []string{"company-branch-id", "company_branch_id", "x-branch-id"}

// ResolveBranchHeader reads the branch id from the first non-empty header in
// BranchHeaders. It returns nil when none is set.
func ResolveBranchHeader(get func(name string) string) (*int64, error) {
	return ResolveBranchFrom(get, BranchHeaders)
}

// ResolveBranchFrom is ResolveBranchHeader with a custom header list.
func ResolveBranchFrom(get func(name string) string, headers []string) (*int64, error) {
	for _, name := range headers {
		raw := strings.TrimSpace(get(name))
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("invalid branch id %q in header %s", raw, name))
		}
		return &id, nil
	}
	return nil, nil
}
