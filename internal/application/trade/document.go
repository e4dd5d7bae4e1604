// Package trade creates and reads the numbered business documents:
// purchase orders, goods receipt notes and invoices.
package trade

import (
	"context"
	"time"

	"gorm.io/gorm"

	appnumbering "github.com/erp/mfgerp/internal/application/numbering"
	"github.com/erp/mfgerp/internal/domain/numbering"
	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/domain/tenancy"
	"github.com/erp/mfgerp/internal/domain/timefmt"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

// EventPublisher writes domain events inside a transaction
type EventPublisher interface {
	PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error
}

// DisplayProvider returns the timestamp formatter of a tenant
type DisplayProvider interface {
	Display(ctx context.Context, tenantID int64) timefmt.Display
}

type defaultDisplay struct{}

func (defaultDisplay) Display(context.Context, int64) timefmt.Display {
	return timefmt.DefaultDisplay()
}

// numberedRecord is a document model that receives an issued number
type numberedRecord interface {
	AssignNumber(seq int64, value string)
	PrimaryKey() int64
	Scope() *models.TenantScope
}

// documentNumberer creates numbered documents. The number, the insert and
// the document.numbered event commit together or not at all.
type documentNumberer struct {
	generator *appnumbering.Generator
	publisher EventPublisher
}

// create issues a number for doc, runs insert and records the event in one
// transaction. insert receives the transaction and must write doc.
func (d *documentNumberer) create(ctx context.Context, tc tenancy.Context, docType numbering.DocumentType, doc numberedRecord, insert func(tx *gorm.DB) error) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	return d.generator.RunInTx(ctx, docType, func(tx *gorm.DB) error {
		num, err := d.generator.NextIDTx(ctx, tx, tc.TenantID, docType)
		if err != nil {
			return err
		}
		doc.AssignNumber(num.Sequence, num.Value)

		if err := insert(tx); err != nil {
			return err
		}

		if d.publisher == nil {
			return nil
		}
		evt := shared.NewDocumentNumberedEvent(tc.TenantID, doc.PrimaryKey(), doc.Scope().BranchID,
			string(docType), num.Value, num.Sequence)
		return d.publisher.PublishWithTx(ctx, tx, evt)
	})
}

func actor(tc tenancy.Context) *int64 {
	if tc.ActorID <= 0 {
		return nil
	}
	id := tc.ActorID
	return &id
}

func dateOrToday(d *time.Time) time.Time {
	if d == nil || d.IsZero() {
		return time.Now().UTC()
	}
	return d.UTC()
}

// listFilter builds the store filter shared by the document lists
func listFilter(page, pageSize int, orderBy, orderDir, search string, allBranches bool) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	if pageSize > 100 {
		f.PageSize = 100
	}
	if orderBy != "" {
		f.OrderBy = orderBy
	}
	if orderDir != "" {
		f.OrderDir = orderDir
	}
	f.Search = search
	f.AllBranches = allBranches
	return f
}
