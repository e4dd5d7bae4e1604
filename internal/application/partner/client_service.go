// Package partner manages the clients a tenant trades with.
package partner

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/domain/tenancy"
	"github.com/erp/mfgerp/internal/domain/timefmt"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
	"github.com/erp/mfgerp/internal/infrastructure/persistence"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

// DisplayProvider returns the timestamp formatter of a tenant
type DisplayProvider interface {
	Display(ctx context.Context, tenantID int64) timefmt.Display
}

type defaultDisplay struct{}

func (defaultDisplay) Display(context.Context, int64) timefmt.Display {
	return timefmt.DefaultDisplay()
}

// ClientService handles client-related business operations
type ClientService struct {
	clients *persistence.ClientStore
	display DisplayProvider
	logger  *zap.Logger
}

// NewClientService creates a new ClientService
func NewClientService(clients *persistence.ClientStore, logger *zap.Logger) *ClientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{
		clients: clients,
		display: defaultDisplay{},
		logger:  logger,
	}
}

// SetDisplayProvider sets the formatter source for response timestamps
func (s *ClientService) SetDisplayProvider(p DisplayProvider) {
	s.display = p
}

// Create creates a new client. Codes are unique within a tenant.
func (s *ClientService) Create(ctx context.Context, tc tenancy.Context, req CreateClientRequest) (*ClientResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return nil, shared.ErrInvalidInput.WithMessage("code and name are required")
	}
	if req.PaymentTerms < 0 {
		return nil, shared.ErrInvalidInput.WithMessage("payment_terms must not be negative")
	}

	taken, err := s.codeTaken(ctx, tc, code)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, shared.ErrAlreadyExists.WithMessage("client with code " + code + " already exists")
	}

	client := &models.ClientModel{
		Code:            code,
		Name:            name,
		ContactName:     req.ContactName,
		ContactPhone:    req.ContactPhone,
		Email:           req.Email,
		GSTIN:           strings.ToUpper(req.GSTIN),
		BillingAddress:  req.BillingAddress,
		ShippingAddress: req.ShippingAddress,
		PaymentTerms:    req.PaymentTerms,
		Status:          models.ClientStatusActive,
		Remark:          req.Remark,
	}
	if tc.ActorID > 0 {
		actor := tc.ActorID
		client.CreatedBy = &actor
	}

	if err := s.clients.Create(ctx, tc, client); err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("client created",
		zap.Int64("client_id", client.ID),
		zap.String("code", client.Code))

	resp := ToClientResponse(ctx, client, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// Get retrieves a client of the requesting tenant
func (s *ClientService) Get(ctx context.Context, tc tenancy.Context, id int64) (*ClientResponse, error) {
	client, err := s.clients.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	resp := ToClientResponse(ctx, client, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// List returns the clients of the requesting tenant
func (s *ClientService) List(ctx context.Context, tc tenancy.Context, filter ClientListFilter) ([]ClientResponse, int64, error) {
	f := pageFilter(filter.Page, filter.PageSize)
	if filter.OrderBy != "" {
		f.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		f.OrderDir = filter.OrderDir
	}
	f.Search = filter.Search
	f.IncludeInactive = filter.IncludeInactive

	rows, total, err := s.clients.Find(ctx, tc, f)
	if err != nil {
		return nil, 0, err
	}
	d := s.display.Display(ctx, tc.TenantID)
	out := make([]ClientResponse, len(rows))
	for i := range rows {
		out[i] = ToClientResponse(ctx, &rows[i], d)
	}
	return out, total, nil
}

// Update changes the editable fields of a client. The code is immutable.
func (s *ClientService) Update(ctx context.Context, tc tenancy.Context, id int64, req UpdateClientRequest) (*ClientResponse, error) {
	attrs := make(map[string]any)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, shared.ErrInvalidInput.WithMessage("name must not be empty")
		}
		attrs["name"] = name
	}
	if req.ContactName != nil {
		attrs["contact_name"] = *req.ContactName
	}
	if req.ContactPhone != nil {
		attrs["contact_phone"] = *req.ContactPhone
	}
	if req.Email != nil {
		attrs["email"] = *req.Email
	}
	if req.GSTIN != nil {
		attrs["gstin"] = strings.ToUpper(*req.GSTIN)
	}
	if req.BillingAddress != nil {
		attrs["billing_address"] = *req.BillingAddress
	}
	if req.ShippingAddress != nil {
		attrs["shipping_address"] = *req.ShippingAddress
	}
	if req.PaymentTerms != nil {
		if *req.PaymentTerms < 0 {
			return nil, shared.ErrInvalidInput.WithMessage("payment_terms must not be negative")
		}
		attrs["payment_terms"] = *req.PaymentTerms
	}
	if req.Remark != nil {
		attrs["remark"] = *req.Remark
	}

	var (
		client *models.ClientModel
		err    error
	)
	if len(attrs) == 0 {
		client, err = s.clients.Get(ctx, tc, id)
	} else {
		client, err = s.clients.Update(ctx, tc, id, attrs)
	}
	if err != nil {
		return nil, err
	}
	resp := ToClientResponse(ctx, client, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// Deactivate marks a client INACTIVE. Documents keep referring to it.
func (s *ClientService) Deactivate(ctx context.Context, tc tenancy.Context, id int64) error {
	if err := s.clients.Delete(ctx, tc, id); err != nil {
		return err
	}
	logger.WithLogger(ctx, s.logger).Info("client deactivated", zap.Int64("client_id", id))
	return nil
}

// Activate makes an inactive client usable again
func (s *ClientService) Activate(ctx context.Context, tc tenancy.Context, id int64) (*ClientResponse, error) {
	client, err := s.clients.Update(ctx, tc, id, map[string]any{"status": models.ClientStatusActive})
	if err != nil {
		return nil, err
	}
	resp := ToClientResponse(ctx, client, s.display.Display(ctx, tc.TenantID))
	return &resp, nil
}

// AdminLookup searches clients across every tenant. Timestamps are rendered
// with the default display settings since rows belong to many tenants.
func (s *ClientService) AdminLookup(ctx context.Context, filter AdminClientFilter) ([]ClientResponse, int64, error) {
	f := pageFilter(filter.Page, filter.PageSize)
	f.IncludeInactive = true
	f.Search = filter.Search
	if filter.TenantID > 0 {
		f = f.Where("tenant_id", filter.TenantID)
	}
	if code := strings.TrimSpace(filter.Code); code != "" {
		f = f.Where("code", strings.ToUpper(code))
	}
	if gstin := strings.TrimSpace(filter.GSTIN); gstin != "" {
		f = f.Where("gstin", strings.ToUpper(gstin))
	}

	rows, total, err := s.clients.FindUnscoped(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	d := timefmt.DefaultDisplay()
	out := make([]ClientResponse, len(rows))
	for i := range rows {
		out[i] = ToClientResponse(ctx, &rows[i], d)
	}
	return out, total, nil
}

func (s *ClientService) codeTaken(ctx context.Context, tc tenancy.Context, code string) (bool, error) {
	f := pageFilter(1, 1)
	f.IncludeInactive = true
	_, total, err := s.clients.Find(ctx, tc, f.Where("code", code))
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

func pageFilter(page, pageSize int) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = min(pageSize, 100)
	}
	return f
}
