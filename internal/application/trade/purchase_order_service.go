package trade

import (
	"context"
	"fmt"

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

// PurchaseOrderService handles purchase order operations
type PurchaseOrderService struct {
	orders  *persistence.PurchaseOrderStore
	clients *persistence.ClientStore
	numbers documentNumberer
	display DisplayProvider
	logger  *zap.Logger
}

// NewPurchaseOrderService creates a new PurchaseOrderService
func NewPurchaseOrderService(
	orders *persistence.PurchaseOrderStore,
	clients *persistence.ClientStore,
	generator *appnumbering.Generator,
	publisher EventPublisher,
	logger *zap.Logger,
) *PurchaseOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseOrderService{
		orders:  orders,
		clients: clients,
		numbers: documentNumberer{generator: generator, publisher: publisher},
		display: defaultDisplay{},
		logger:  logger,
	}
}

// SetDisplayProvider sets the formatter source for response timestamps
func (s *PurchaseOrderService) SetDisplayProvider(p DisplayProvider) {
	s.display = p
}

// Create raises a purchase order under the next PO number
func (s *PurchaseOrderService) Create(ctx context.Context, tc tenancy.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	if req.TotalAmount.IsNegative() || req.TaxAmount.IsNegative() {
		return nil, shared.ErrInvalidInput.WithMessage("amounts must not be negative")
	}

	po := &models.PurchaseOrderModel{
		ClientID:     req.ClientID,
		PODate:       dateOrToday(req.PODate),
		DeliveryDate: req.DeliveryDate,
		TotalAmount:  req.TotalAmount,
		TaxAmount:    req.TaxAmount,
		Status:       models.PurchaseOrderStatusDraft,
		Remark:       req.Remark,
	}
	po.CreatedBy = actor(tc)

	err := s.numbers.create(ctx, tc, numbering.DocumentTypePurchaseOrder, po, func(tx *gorm.DB) error {
		if err := requireClient(ctx, s.clients.WithTx(tx), tc, req.ClientID); err != nil {
			return err
		}
		return s.orders.WithTx(tx).Create(ctx, tc, po)
	})
	if err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("purchase order created",
		zap.Int64("purchase_order_id", po.ID),
		zap.String("document_number", po.DocumentNumber))

	resp := ToPurchaseOrderResponse(ctx, po, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// Get returns a purchase order of the requesting scope
func (s *PurchaseOrderService) Get(ctx context.Context, tc tenancy.Context, id int64) (*PurchaseOrderResponse, error) {
	po, err := s.orders.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	resp := ToPurchaseOrderResponse(ctx, po, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// List returns purchase orders of the requesting scope
func (s *PurchaseOrderService) List(ctx context.Context, tc tenancy.Context, filter PurchaseOrderListFilter) ([]PurchaseOrderResponse, int64, error) {
	f := listFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, filter.Search, filter.AllBranches)
	f.IncludeInactive = filter.Cancelled || filter.Status == models.PurchaseOrderStatusCancelled
	if filter.Status != "" {
		f = f.Where("status", filter.Status)
	}
	if filter.ClientID > 0 {
		f = f.Where("client_id", filter.ClientID)
	}

	rows, total, err := s.orders.Find(ctx, tc, f)
	if err != nil {
		return nil, 0, err
	}
	d := s.display.Display(ctx, tc.TenantID)
	out := make([]PurchaseOrderResponse, len(rows))
	for i := range rows {
		out[i] = ToPurchaseOrderResponse(ctx, &rows[i], d)
	}
	return out, total, nil
}

// Update edits a draft purchase order. The number is never changed.
func (s *PurchaseOrderService) Update(ctx context.Context, tc tenancy.Context, id int64, req UpdatePurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	current, err := s.orders.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.PurchaseOrderStatusDraft {
		return nil, shared.ErrInvalidState.WithMessage(fmt.Sprintf("purchase order %s is %s", current.DocumentNumber, current.Status))
	}

	attrs := make(map[string]any)
	if req.DeliveryDate != nil {
		attrs["delivery_date"] = req.DeliveryDate.UTC()
	}
	if req.TotalAmount != nil {
		if req.TotalAmount.IsNegative() {
			return nil, shared.ErrInvalidInput.WithMessage("total_amount must not be negative")
		}
		attrs["total_amount"] = *req.TotalAmount
	}
	if req.TaxAmount != nil {
		if req.TaxAmount.IsNegative() {
			return nil, shared.ErrInvalidInput.WithMessage("tax_amount must not be negative")
		}
		attrs["tax_amount"] = *req.TaxAmount
	}
	if req.Remark != nil {
		attrs["remark"] = *req.Remark
	}
	if len(attrs) == 0 {
		resp := ToPurchaseOrderResponse(ctx, current, s.display.Display(ctx, tc.TenantID))
		return &resp, nil
	}

	po, err := s.orders.Update(ctx, tc, id, attrs)
	if err != nil {
		return nil, err
	}
	resp := ToPurchaseOrderResponse(ctx, po, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// Cancel marks a purchase order CANCELLED. Its number stays consumed.
func (s *PurchaseOrderService) Cancel(ctx context.Context, tc tenancy.Context, id int64) error {
	if err := s.orders.Delete(ctx, tc, id); err != nil {
		return err
	}
	logger.WithLogger(ctx, s.logger).Info("purchase order cancelled", zap.Int64("purchase_order_id", id))
	return nil
}

// requireClient fails unless the tenant owns an active client with id
func requireClient(ctx context.Context, clients *persistence.ClientStore, tc tenancy.Context, id int64) error {
	client, err := clients.Get(ctx, tc, id)
	if err != nil {
		return err
	}
	if client.Status != models.ClientStatusActive {
		return shared.ErrInvalidState.WithMessage(fmt.Sprintf("client %s is inactive", client.Code))
	}
	return nil
}
