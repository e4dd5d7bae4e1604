package tenant

import (
	"reflect"

	"gorm.io/gorm"

	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

const guardCallbackName = "tenant:guard_create"

// RegisterCreateGuard installs a create callback that refuses to insert a
// scoped record without a tenant id. It is a backstop for writes that do
// not go through a Store; it never adds predicates to queries.
func RegisterCreateGuard(db *gorm.DB) error {
	return db.Callback().Create().Before("gorm:create").Register(guardCallbackName, guardCreate)
}

// RemoveCreateGuard removes the callback installed by RegisterCreateGuard.
func RemoveCreateGuard(db *gorm.DB) error {
	return db.Callback().Create().Remove(guardCallbackName)
}

func guardCreate(db *gorm.DB) {
	if db.Statement == nil || db.Error != nil {
		return
	}
	if missingTenant(db.Statement.ReflectValue) {
		_ = db.AddError(shared.ErrMissingTenant.WithMessage("refusing to insert a scoped record without tenant_id"))
	}
}

type scoped interface {
	Scope() *models.TenantScope
}

// missingTenant inspects a single record or a slice of records.
func missingTenant(rv reflect.Value) bool {
	if !rv.IsValid() {
		return false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if missingTenant(rv.Index(i)) {
				return true
			}
		}
		return false
	case reflect.Ptr:
		if rv.IsNil() {
			return false
		}
		return missingTenant(rv.Elem())
	case reflect.Struct:
		if !rv.CanAddr() {
			return false
		}
		rec, ok := rv.Addr().Interface().(scoped)
		if !ok {
			return false
		}
		return rec.Scope().TenantID <= 0
	}
	return false
}
