package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/domain/tenancy"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

// Record is implemented by pointers to models that embed models.TenantScope.
type Record[T any] interface {
	*T
	Scope() *models.TenantScope
}

// Store is a CRUD wrapper that filters and stamps every call with the
// tenant (and branch) of the supplied tenancy.Context.
type Store[T any, PT Record[T]] struct {
	db     *gorm.DB
	desc   EntityDescriptor
	logger *zap.Logger
	meta   *schemaCache
}

// schemaCache is shared between a store and its WithTx copies.
type schemaCache struct {
	once   sync.Once
	schema *schema.Schema
	err    error
}

// NewStore creates a Store for T.
func NewStore[T any, PT Record[T]](db *gorm.DB, desc EntityDescriptor, log *zap.Logger) *Store[T, PT] {
	if log == nil {
		log = zap.NewNop()
	}
	if desc.Name == "" {
		desc.Name = "record"
	}
	if desc.DefaultSort == "" {
		desc.DefaultSort = "created_at"
	}
	if desc.SortFields == nil {
		desc.SortFields = CommonSortFields
	}
	return &Store[T, PT]{
		db:     db,
		desc:   desc,
		logger: log.With(zap.String("entity", desc.Name)),
		meta:   &schemaCache{},
	}
}

// WithTx returns a copy of the store bound to tx.
func (s *Store[T, PT]) WithTx(tx *gorm.DB) *Store[T, PT] {
	clone := *s
	clone.db = tx
	return &clone
}

// Find lists the rows of the requesting tenant that match f.
// tenant_id (and branch_id, when the branch constraint applies) in
// f.Filters is replaced by the request scope, never merged.
func (s *Store[T, PT]) Find(ctx context.Context, tc tenancy.Context, f shared.Filter) ([]T, int64, error) {
	if err := tc.Validate(); err != nil {
		return nil, 0, err
	}
	scopeBranch := s.desc.BranchScoped && tc.HasBranch() && !f.AllBranches
	effective := tc
	if !scopeBranch {
		effective = tc.WithoutBranch()
	}

	conds, err := s.conditions(ctx, f.Filters, &effective, scopeBranch)
	if err != nil {
		return nil, 0, err
	}
	base := func() *gorm.DB {
		q := ContextScope(effective, scopeBranch)(s.db.WithContext(ctx).Model(new(T)))
		return s.applyConditions(q, conds, f)
	}
	return s.list(base, f)
}

// FindUnscoped lists rows across all tenants. It is reserved for
// administrative reads and every call is logged.
func (s *Store[T, PT]) FindUnscoped(ctx context.Context, f shared.Filter) ([]T, int64, error) {
	conds, err := s.conditions(ctx, f.Filters, nil, false)
	if err != nil {
		return nil, 0, err
	}

	fields := []zap.Field{zap.Any("filters", f.Filters)}
	if caller, ok := tenancy.FromContext(ctx); ok {
		fields = append(fields, zap.Int64("caller_tenant_id", caller.TenantID), zap.Int64("caller_user_id", caller.ActorID))
	}
	logger.WithLogger(ctx, s.logger).Warn("unscoped read across tenants", fields...)

	base := func() *gorm.DB {
		return s.applyConditions(s.db.WithContext(ctx).Model(new(T)), conds, f)
	}
	return s.list(base, f)
}

// Get returns one row of the requesting tenant.
func (s *Store[T, PT]) Get(ctx context.Context, tc tenancy.Context, id int64) (*T, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	var rec T
	err := s.scoped(ctx, tc).Where(s.pk(id)).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.missing(ctx, tc, id)
		}
		return nil, fmt.Errorf("get %s %d: %w", s.desc.Name, id, err)
	}
	return &rec, nil
}

// Create inserts rec owned by the requesting tenant. Any tenant id already
// on rec is overwritten. The branch of the request is stamped on
// branch-scoped entities; tenant-wide requests keep the branch on rec.
func (s *Store[T, PT]) Create(ctx context.Context, tc tenancy.Context, rec PT) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	if rec == nil {
		return shared.ErrInvalidInput.WithMessage(s.desc.Name + " is required")
	}

	sc := rec.Scope()
	if sc.TenantID != 0 && sc.TenantID != tc.TenantID {
		logger.WithLogger(ctx, s.logger).Warn("create payload named another tenant, overwriting",
			zap.Int64("payload_tenant_id", sc.TenantID),
			zap.String("scope", tc.String()))
	}
	sc.TenantID = tc.TenantID
	switch {
	case !s.desc.BranchScoped:
		sc.BranchID = nil
	case tc.HasBranch():
		b := *tc.BranchID
		sc.BranchID = &b
	}

	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create %s: %w", s.desc.Name, err)
	}
	return nil
}

// Update applies attrs to the row and returns the stored result.
// Keys are column names (or field names). id, branch_id, created_at and
// created_by are ignored; tenant_id is re-stamped from tc.
func (s *Store[T, PT]) Update(ctx context.Context, tc tenancy.Context, id int64, attrs map[string]any) (*T, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	values, err := s.assignments(ctx, attrs)
	if err != nil {
		return nil, err
	}
	values[tenantColumn] = tc.TenantID

	res := s.scoped(ctx, tc).Where(s.pk(id)).Updates(values)
	if res.Error != nil {
		return nil, fmt.Errorf("update %s %d: %w", s.desc.Name, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, s.missing(ctx, tc, id)
	}
	return s.Get(ctx, tc, id)
}

// Delete removes or deactivates the row according to the descriptor.
func (s *Store[T, PT]) Delete(ctx context.Context, tc tenancy.Context, id int64) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	q := s.scoped(ctx, tc).Where(s.pk(id))

	var res *gorm.DB
	if s.desc.Delete.IsSoft() {
		res = q.Updates(map[string]any{s.desc.Delete.Column(): s.desc.Delete.InactiveValue()})
	} else {
		res = q.Delete(new(T))
	}
	if res.Error != nil {
		return fmt.Errorf("delete %s %d: %w", s.desc.Name, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missing(ctx, tc, id)
	}
	return nil
}

// missing tells a row that does not exist apart from one that is owned by
// somebody else. Both carry the same message, without the id; only the log
// and the error code differ.
func (s *Store[T, PT]) missing(ctx context.Context, tc tenancy.Context, id int64) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(new(T)).Where(s.pk(id)).Count(&n).Error; err != nil {
		return fmt.Errorf("check %s %d: %w", s.desc.Name, id, err)
	}
	msg := s.desc.Name + " not found"
	if n == 0 {
		return shared.ErrNotFound.WithMessage(msg)
	}
	logger.WithLogger(ctx, s.logger).Warn("cross-tenant access rejected",
		zap.Int64("id", id),
		zap.String("scope", tc.String()),
		zap.Int64("actor_id", tc.ActorID))
	return shared.ErrCrossTenantAccess.WithMessage(msg)
}

// scoped starts a query on T restricted to the tenant and, for
// branch-scoped entities, the branch of tc.
func (s *Store[T, PT]) scoped(ctx context.Context, tc tenancy.Context) *gorm.DB {
	return ContextScope(tc, s.desc.BranchScoped)(s.db.WithContext(ctx).Model(new(T)))
}

func (s *Store[T, PT]) pk(id int64) clause.Expression {
	return clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "id"}, Value: id}
}

type condition struct {
	column string
	value  any
}

// conditions validates filter columns. With a scope, ownership columns are
// dropped: the request scope is applied separately and always wins.
func (s *Store[T, PT]) conditions(ctx context.Context, filters map[string]any, scope *tenancy.Context, branchScoped bool) ([]condition, error) {
	sch, err := s.parsedSchema()
	if err != nil {
		return nil, err
	}
	out := make([]condition, 0, len(filters))
	for key, value := range filters {
		column, ok := s.columnName(sch, key)
		if !ok {
			return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown filter field %q", key))
		}
		if scope != nil && (column == tenantColumn || (column == branchColumn && branchScoped)) {
			if !sameOwner(value, column, *scope) {
				logger.WithLogger(ctx, s.logger).Warn("filter named a foreign scope, replaced by request scope",
					zap.String("column", column),
					zap.Any("value", value),
					zap.String("scope", scope.String()))
			}
			continue
		}
		out = append(out, condition{column: column, value: value})
	}
	return out, nil
}

func sameOwner(value any, column string, tc tenancy.Context) bool {
	want := tc.TenantID
	if column == branchColumn {
		want = tc.Branch()
	}
	switch v := value.(type) {
	case int64:
		return v == want
	case int:
		return int64(v) == want
	case *int64:
		return v != nil && *v == want
	}
	return false
}

func (s *Store[T, PT]) applyConditions(q *gorm.DB, conds []condition, f shared.Filter) *gorm.DB {
	for _, c := range conds {
		q = q.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: c.column}, Value: c.value})
	}

	if search := strings.TrimSpace(f.Search); search != "" && len(s.desc.SearchColumns) > 0 {
		pattern := "%" + strings.ToLower(search) + "%"
		exprs := make([]clause.Expression, 0, len(s.desc.SearchColumns))
		for _, col := range s.desc.SearchColumns {
			exprs = append(exprs, clause.Expr{SQL: "LOWER(?) LIKE ?", Vars: []any{clause.Column{Table: clause.CurrentTable, Name: col}, pattern}})
		}
		q = q.Where(clause.Or(exprs...))
	}

	if s.desc.Delete.IsSoft() && !f.IncludeInactive {
		q = q.Where(clause.Neq{
			Column: clause.Column{Table: clause.CurrentTable, Name: s.desc.Delete.Column()},
			Value:  s.desc.Delete.InactiveValue(),
		})
	}
	return q
}

func (s *Store[T, PT]) list(base func() *gorm.DB, f shared.Filter) ([]T, int64, error) {
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", s.desc.Name, err)
	}

	q := base()
	sortField := ValidateSortField(f.OrderBy, s.desc.SortFields, s.desc.DefaultSort)
	q = q.Order(clause.OrderByColumn{
		Column: clause.Column{Table: clause.CurrentTable, Name: sortField},
		Desc:   ValidateSortOrder(f.OrderDir) == "DESC",
	})
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		q = q.Offset((page - 1) * f.PageSize).Limit(f.PageSize)
	}

	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", s.desc.Name, err)
	}
	return rows, total, nil
}

// assignments maps attrs onto real columns, dropping immutable ones and
// rejecting unknown keys.
func (s *Store[T, PT]) assignments(ctx context.Context, attrs map[string]any) (map[string]any, error) {
	sch, err := s.parsedSchema()
	if err != nil {
		return nil, err
	}
	values := make(map[string]any, len(attrs)+1)
	for key, value := range attrs {
		column, ok := s.columnName(sch, key)
		if !ok {
			return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown field %q", key))
		}
		if immutableColumns[column] {
			logger.WithLogger(ctx, s.logger).Debug("ignoring immutable column on update", zap.String("column", column))
			continue
		}
		values[column] = value
	}
	return values, nil
}

func (s *Store[T, PT]) columnName(sch *schema.Schema, key string) (string, bool) {
	field := sch.LookUpField(key)
	if field == nil || field.DBName == "" {
		return "", false
	}
	return field.DBName, true
}

func (s *Store[T, PT]) parsedSchema() (*schema.Schema, error) {
	s.meta.once.Do(func() {
		stmt := &gorm.Statement{DB: s.db}
		if err := stmt.Parse(new(T)); err != nil {
			s.meta.err = fmt.Errorf("parse %s schema: %w", s.desc.Name, err)
			return
		}
		s.meta.schema = stmt.Schema
	})
	return s.meta.schema, s.meta.err
}
