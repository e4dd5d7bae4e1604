package trade

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	appnumbering "github.com/erp/mfgerp/internal/application/numbering"
	"github.com/erp/mfgerp/internal/domain/numbering"
	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/domain/tenancy"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
	"github.com/erp/mfgerp/internal/infrastructure/persistence"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

// InvoiceService handles sales invoices
type InvoiceService struct {
	invoices *persistence.InvoiceStore
	clients  *persistence.ClientStore
	numbers  documentNumberer
	display  DisplayProvider
	logger   *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoices *persistence.InvoiceStore,
	clients *persistence.ClientStore,
	generator *appnumbering.Generator,
	publisher EventPublisher,
	logger *zap.Logger,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		invoices: invoices,
		clients:  clients,
		numbers:  documentNumberer{generator: generator, publisher: publisher},
		display:  defaultDisplay{},
		logger:   logger,
	}
}

// SetDisplayProvider sets the formatter source for response timestamps
func (s *InvoiceService) SetDisplayProvider(p DisplayProvider) {
	s.display = p
}

// Create issues an invoice under the next INV number
func (s *InvoiceService) Create(ctx context.Context, tc tenancy.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	if req.SubTotal.IsNegative() || req.TaxAmount.IsNegative() {
		return nil, shared.ErrInvalidInput.WithMessage("amounts must not be negative")
	}
	invoiceDate := dateOrToday(req.InvoiceDate)
	if req.DueDate != nil && req.DueDate.Before(invoiceDate) {
		return nil, shared.ErrInvalidInput.WithMessage("due_date must not be before invoice_date")
	}

	inv := &models.InvoiceModel{
		ClientID:    req.ClientID,
		InvoiceDate: invoiceDate,
		DueDate:     req.DueDate,
		SubTotal:    req.SubTotal,
		TaxAmount:   req.TaxAmount,
		TotalAmount: req.SubTotal.Add(req.TaxAmount),
		Status:      models.InvoiceStatusIssued,
		Remark:      req.Remark,
	}
	inv.CreatedBy = actor(tc)

	err := s.numbers.create(ctx, tc, numbering.DocumentTypeInvoice, inv, func(tx *gorm.DB) error {
		if err := requireClient(ctx, s.clients.WithTx(tx), tc, req.ClientID); err != nil {
			return err
		}
		return s.invoices.WithTx(tx).Create(ctx, tc, inv)
	})
	if err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("invoice issued",
		zap.Int64("invoice_id", inv.ID),
		zap.String("document_number", inv.DocumentNumber),
		zap.String("total_amount", inv.TotalAmount.StringFixed(2)))

	resp := ToInvoiceResponse(ctx, inv, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// Get returns an invoice of the requesting scope
func (s *InvoiceService) Get(ctx context.Context, tc tenancy.Context, id int64) (*InvoiceResponse, error) {
	inv, err := s.invoices.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(ctx, inv, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// List returns invoices of the requesting scope
func (s *InvoiceService) List(ctx context.Context, tc tenancy.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	f := listFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, filter.Search, filter.AllBranches)
	f.IncludeInactive = filter.Cancelled || filter.Status == models.InvoiceStatusCancelled
	if filter.Status != "" {
		f = f.Where("status", filter.Status)
	}
	if filter.ClientID > 0 {
		f = f.Where("client_id", filter.ClientID)
	}

	rows, total, err := s.invoices.Find(ctx, tc, f)
	if err != nil {
		return nil, 0, err
	}
	d := s.display.Display(ctx, tc.TenantID)
	out := make([]InvoiceResponse, len(rows))
	for i := range rows {
		out[i] = ToInvoiceResponse(ctx, &rows[i], d)
	}
	return out, total, nil
}

// Cancel marks an unpaid invoice CANCELLED. Its number stays consumed.
func (s *InvoiceService) Cancel(ctx context.Context, tc tenancy.Context, id int64) error {
	inv, err := s.invoices.Get(ctx, tc, id)
	if err != nil {
		return err
	}
	if inv.Status == models.InvoiceStatusPaid {
		return shared.ErrInvalidState.WithMessage("invoice " + inv.DocumentNumber + " is paid")
	}
	if err := s.invoices.Delete(ctx, tc, id); err != nil {
		return err
	}
	logger.WithLogger(ctx, s.logger).Info("invoice cancelled", zap.Int64("invoice_id", id))
	return nil
}
