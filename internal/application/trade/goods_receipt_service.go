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

// GoodsReceiptService handles goods receipt notes
type GoodsReceiptService struct {
	grns    *persistence.GoodsReceiptNoteStore
	orders  *persistence.PurchaseOrderStore
	clients *persistence.ClientStore
	numbers documentNumberer
	display DisplayProvider
	logger  *zap.Logger
}

// NewGoodsReceiptService creates a new GoodsReceiptService
func NewGoodsReceiptService(
	grns *persistence.GoodsReceiptNoteStore,
	orders *persistence.PurchaseOrderStore,
	clients *persistence.ClientStore,
	generator *appnumbering.Generator,
	publisher EventPublisher,
	logger *zap.Logger,
) *GoodsReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoodsReceiptService{
		grns:    grns,
		orders:  orders,
		clients: clients,
		numbers: documentNumberer{generator: generator, publisher: publisher},
		display: defaultDisplay{},
		logger:  logger,
	}
}

// SetDisplayProvider sets the formatter source for response timestamps
func (s *GoodsReceiptService) SetDisplayProvider(p DisplayProvider) {
	s.display = p
}

// Create records received material under the next GRN number. A referenced
// purchase order must be visible to the requesting scope.
func (s *GoodsReceiptService) Create(ctx context.Context, tc tenancy.Context, req CreateGoodsReceiptRequest) (*GoodsReceiptResponse, error) {
	if req.ReceivedQty.IsNegative() {
		return nil, shared.ErrInvalidInput.WithMessage("received_qty must not be negative")
	}
	if req.PurchaseOrderID == nil && req.ClientID <= 0 {
		return nil, shared.ErrInvalidInput.WithMessage("client_id or purchase_order_id is required")
	}

	grn := &models.GoodsReceiptNoteModel{
		PurchaseOrderID: req.PurchaseOrderID,
		ClientID:        req.ClientID,
		GRNDate:         dateOrToday(req.GRNDate),
		ChallanNo:       req.ChallanNo,
		ReceivedQty:     req.ReceivedQty,
		Remark:          req.Remark,
	}
	grn.CreatedBy = actor(tc)

	err := s.numbers.create(ctx, tc, numbering.DocumentTypeGoodsReceipt, grn, func(tx *gorm.DB) error {
		if req.PurchaseOrderID != nil {
			po, err := s.orders.WithTx(tx).Get(ctx, tc, *req.PurchaseOrderID)
			if err != nil {
				return err
			}
			if po.Status == models.PurchaseOrderStatusCancelled {
				return shared.ErrInvalidState.WithMessage("purchase order " + po.DocumentNumber + " is cancelled")
			}
			grn.ClientID = po.ClientID
		} else if err := requireClient(ctx, s.clients.WithTx(tx), tc, req.ClientID); err != nil {
			return err
		}
		return s.grns.WithTx(tx).Create(ctx, tc, grn)
	})
	if err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("goods receipt note created",
		zap.Int64("grn_id", grn.ID),
		zap.String("document_number", grn.DocumentNumber))

	resp := ToGoodsReceiptResponse(ctx, grn, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// Get returns a GRN of the requesting scope
func (s *GoodsReceiptService) Get(ctx context.Context, tc tenancy.Context, id int64) (*GoodsReceiptResponse, error) {
	grn, err := s.grns.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	resp := ToGoodsReceiptResponse(ctx, grn, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// List returns GRNs of the requesting scope
func (s *GoodsReceiptService) List(ctx context.Context, tc tenancy.Context, filter GoodsReceiptListFilter) ([]GoodsReceiptResponse, int64, error) {
	f := listFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, filter.Search, filter.AllBranches)
	if filter.PurchaseOrderID > 0 {
		f = f.Where("purchase_order_id", filter.PurchaseOrderID)
	}

	rows, total, err := s.grns.Find(ctx, tc, f)
	if err != nil {
		return nil, 0, err
	}
	d := s.display.Display(ctx, tc.TenantID)
	out := make([]GoodsReceiptResponse, len(rows))
	for i := range rows {
		out[i] = ToGoodsReceiptResponse(ctx, &rows[i], d)
	}
	return out, total, nil
}

// Delete removes a GRN. Its number is not reissued.
func (s *GoodsReceiptService) Delete(ctx context.Context, tc tenancy.Context, id int64) error {
	if err := s.grns.Delete(ctx, tc, id); err != nil {
		return err
	}
	logger.WithLogger(ctx, s.logger).Info("goods receipt note deleted", zap.Int64("grn_id", id))
	return nil
}
