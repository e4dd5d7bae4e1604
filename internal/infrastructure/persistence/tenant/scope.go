// Package tenant provides tenant- and branch-scoped data access for GORM.
//
// Scoping is explicit: every call passes a tenancy.Context to a Store, and
// the Store adds the ownership predicates itself. There are no implicit
// query callbacks. Cross-tenant reads go through Store.FindUnscoped only.
//
// Usage:
//
//	clients := tenant.NewStore[models.ClientModel](db, tenant.EntityDescriptor{
//		Name:   "client",
//		Delete: tenant.SoftDelete("status", models.ClientStatusInactive),
//	}, logger)
//	list, total, err := clients.Find(ctx, tc, shared.DefaultFilter())
package tenant

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/mfgerp/internal/domain/tenancy"
)

// TenantScope restricts a query to one tenant.
func TenantScope(tenantID int64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: tenantColumn},
			Value:  tenantID,
		})
	}
}

// BranchScope restricts a query to one branch.
func BranchScope(branchID int64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: branchColumn},
			Value:  branchID,
		})
	}
}

// ContextScope applies the tenant and, when branchScoped and the context
// carries a branch, the branch predicate. Callers validate tc first.
func ContextScope(tc tenancy.Context, branchScoped bool) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = TenantScope(tc.TenantID)(db)
		if branchScoped && tc.HasBranch() {
			db = BranchScope(*tc.BranchID)(db)
		}
		return db
	}
}
