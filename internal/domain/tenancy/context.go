// Package tenancy carries the tenant and branch identity a request operates
// under. The value lives in the request's context.Context and is never held
// in package-level state.
package tenancy

import (
	"context"
	"strconv"

	"github.com/erp/mfgerp/internal/domain/shared"
)

// Context identifies who a data-access call is scoped to.
// BranchID is nil when the request works tenant-wide.
type Context struct {
	TenantID int64
	BranchID *int64
	ActorID  int64
}

// New builds a Context. A non-positive branch id means "no branch".
func New(tenantID int64, branchID *int64, actorID int64) Context {
	tc := Context{TenantID: tenantID, ActorID: actorID}
	if branchID != nil && *branchID > 0 {
		b := *branchID
		tc.BranchID = &b
	}
	return tc
}

// Validate fails when no tenant has been resolved.
func (c Context) Validate() error {
	if c.TenantID <= 0 {
		return shared.ErrMissingTenant
	}
	return nil
}

// HasTenant reports whether a tenant is present.
func (c Context) HasTenant() bool {
	return c.TenantID > 0
}

// HasBranch reports whether the request is narrowed to one branch.
func (c Context) HasBranch() bool {
	return c.BranchID != nil
}

// Branch returns the branch id, or 0 when tenant-wide.
func (c Context) Branch() int64 {
	if c.BranchID == nil {
		return 0
	}
	return *c.BranchID
}

// WithoutBranch returns a copy widened to the whole tenant.
func (c Context) WithoutBranch() Context {
	c.BranchID = nil
	return c
}

// String renders the scope for logs, e.g. "tenant=7 branch=2".
func (c Context) String() string {
	s := "tenant=" + strconv.FormatInt(c.TenantID, 10)
	if c.BranchID != nil {
		s += " branch=" + strconv.FormatInt(*c.BranchID, 10)
	}
	return s
}

type contextKey struct{}

// WithContext stores tc in ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the Context stored by WithContext.
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return Context{}, false
	}
	tc, ok := ctx.Value(contextKey{}).(Context)
	return tc, ok
}

// MustFromContext returns the stored Context or ErrMissingTenant when no
// tenant was resolved for the request.
func MustFromContext(ctx context.Context) (Context, error) {
	tc, ok := FromContext(ctx)
	if !ok {
		return Context{}, shared.ErrMissingTenant
	}
	if err := tc.Validate(); err != nil {
		return Context{}, err
	}
	return tc, nil
}
