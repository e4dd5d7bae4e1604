package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	appevent "github.com/erp/mfgerp/internal/application/event"
	appnumbering "github.com/erp/mfgerp/internal/application/numbering"
	"github.com/erp/mfgerp/internal/application/partner"
	"github.com/erp/mfgerp/internal/application/settings"
	"github.com/erp/mfgerp/internal/application/trade"
	"github.com/erp/mfgerp/internal/infrastructure/auth"
	"github.com/erp/mfgerp/internal/infrastructure/config"
	"github.com/erp/mfgerp/internal/infrastructure/event"
	"github.com/erp/mfgerp/internal/infrastructure/persistence"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
	"github.com/erp/mfgerp/internal/interfaces/http/dto"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
	"github.com/erp/mfgerp/internal/interfaces/http/router"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type apiFixture struct {
	db          *gorm.DB
	engine      *gin.Engine
	jwt         *auth.JWTService
	revocations auth.RevocationList
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	gen := appnumbering.NewGenerator(db,
		persistence.NewGormNumberingConfigRepository(db),
		persistence.NewGormSequenceAllocator(nil, 0, nil),
		appnumbering.GeneratorOptions{RetryBackoff: time.Millisecond})
	publisher := event.NewOutboxPublisher(0)
	clientStore := persistence.NewClientStore(db, nil)
	orderStore := persistence.NewPurchaseOrderStore(db, nil)

	settingsSvc := settings.NewService(persistence.NewGormCompanySettingsRepository(db), nil, nil, nil)
	clients := partner.NewClientService(clientStore, nil)
	orders := trade.NewPurchaseOrderService(orderStore, clientStore, gen, publisher, nil)
	grns := trade.NewGoodsReceiptService(persistence.NewGoodsReceiptNoteStore(db, nil), orderStore, clientStore, gen, publisher, nil)
	invoices := trade.NewInvoiceService(persistence.NewInvoiceStore(db, nil), clientStore, gen, publisher, nil)
	outbox := appevent.NewOutboxService(event.NewGormOutboxRepository(db), nil)

	jwt := auth.NewJWTService(config.JWTConfig{
		Secret:                "handler-test-secret-key-32-char!",
		Issuer:                "mfgerp-test",
		AccessTokenExpiration: time.Hour,
	})
	revocations := auth.NewInMemoryRevocationList()

	r := router.NewRouter(gin.New(), router.Config{
		ServiceName: "test",
		Tenancy:     config.TenancyConfig{AnnotateResponses: true},
		JWT:         jwt,
		Revocations: revocations,
		Logger:      zap.NewNop(),
	})
	r.Public(NewHealthHandler(nil, nil, "test"))
	r.Tenant(
		NewAuthHandler(revocations),
		NewClientHandler(clients),
		NewPurchaseOrderHandler(orders),
		NewGoodsReceiptHandler(grns),
		NewInvoiceHandler(invoices),
		NewNumberingHandler(appnumbering.NewConfigService(persistence.NewGormNumberingConfigRepository(db), gen, nil)),
		NewSettingsHandler(settingsSvc),
	)
	r.Admin(NewAdminHandler(clients, outbox))

	return &apiFixture{db: db, engine: r.Setup(), jwt: jwt, revocations: revocations}
}

type caller struct {
	tenantID int64
	branchID int64
	roles    []string
}

func (f *apiFixture) token(t *testing.T, who caller) string {
	t.Helper()
	in := auth.GenerateTokenInput{TenantID: who.tenantID, UserID: 42, Username: "tester", Roles: who.roles}
	token, _, err := f.jwt.GenerateAccessToken(in)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, who caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+f.token(t, who))
	if who.branchID > 0 {
		req.Header.Set("company-branch-id", strconv.FormatInt(who.branchID, 10))
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
	Scope   *dto.Scope      `json:"scope"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (f *apiFixture) createClient(t *testing.T, who caller, code string) int64 {
	t.Helper()
	w := f.do(t, who, http.MethodPost, "/clients", map[string]any{"code": code, "name": "Client " + code})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var client partner.ClientResponse
	decode(t, w, &client)
	return client.ID
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	decode(t, w, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth_DatabaseDown(t *testing.T) {
	engine := gin.New()
	NewHealthHandler(failingPinger{}, nil, "test").RegisterRoutes(engine.Group(""))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var health HealthResponse
	decode(t, w, &health)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "connection refused", health.Checks["database"])
}

func TestClientHandler_Lifecycle(t *testing.T) {
	f := newAPIFixture(t)
	who := caller{tenantID: 1}
	id := f.createClient(t, who, "C1")

	w := f.do(t, who, http.MethodGet, "/clients/"+strconv.FormatInt(id, 10), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var client partner.ClientResponse
	env := decode(t, w, &client)
	assert.Equal(t, int64(1), client.TenantID)
	assert.Equal(t, "C1", client.Code)
	require.NotNil(t, env.Scope)
	assert.Nil(t, env.Scope.BranchID)

	w = f.do(t, who, http.MethodPut, "/clients/"+strconv.FormatInt(id, 10), map[string]any{"name": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &client)
	assert.Equal(t, "Renamed", client.Name)

	w = f.do(t, who, http.MethodDelete, "/clients/"+strconv.FormatInt(id, 10), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, who, http.MethodGet, "/clients", nil)
	var list []partner.ClientResponse
	env = decode(t, w, &list)
	assert.Empty(t, list)
	require.NotNil(t, env.Meta)
	assert.Zero(t, env.Meta.Total)

	w = f.do(t, who, http.MethodPost, "/clients/"+strconv.FormatInt(id, 10)+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &client)
	assert.Equal(t, string(models.ClientStatusActive), client.Status)
}

func TestClientHandler_DuplicateCode(t *testing.T) {
	f := newAPIFixture(t)
	who := caller{tenantID: 1}
	f.createClient(t, who, "C1")

	w := f.do(t, who, http.MethodPost, "/clients", map[string]any{"code": "C1", "name": "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, dto.ErrCodeAlreadyExists, env.Error.Code)

	// the same code is free in another tenant
	f.createClient(t, caller{tenantID: 2}, "C1")
}

func TestClientHandler_ForeignClientLooksMissing(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createClient(t, caller{tenantID: 1}, "C1")
	other := caller{tenantID: 2}
	path := "/clients/" + strconv.FormatInt(id, 10)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := f.do(t, other, method, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, method)
		env := decode(t, w, nil)
		assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)
	}

	missing := f.do(t, other, http.MethodGet, "/clients/99999", nil)
	foreign := f.do(t, other, http.MethodGet, path, nil)
	assert.Equal(t, decode(t, missing, nil).Error.Message, decode(t, foreign, nil).Error.Message)
}

func TestClientHandler_ValidationAndBadInput(t *testing.T) {
	f := newAPIFixture(t)
	who := caller{tenantID: 1}

	w := f.do(t, who, http.MethodPost, "/clients", map[string]any{"name": "No code"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
	require.NotEmpty(t, env.Error.Details)
	assert.Equal(t, "code", env.Error.Details[0].Field)

	w = f.do(t, who, http.MethodGet, "/clients/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients", bytes.NewBufferString("{"))
	req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+f.token(t, who))
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, dto.ErrCodeInvalidJSON, decode(t, rec, nil).Error.Code)
}

func TestTenantRoutes_RequireTenantClaim(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, caller{}, http.MethodGet, "/clients", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, dto.ErrCodeMissingTenant, env.Error.Code)

	var count int64
	require.NoError(t, f.db.Model(&models.ClientModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPurchaseOrderHandler_NumbersAndBranchScope(t *testing.T) {
	f := newAPIFixture(t)
	tenantWide := caller{tenantID: 1}
	clientID := f.createClient(t, tenantWide, "C1")

	create := func(branchID int64) trade.PurchaseOrderResponse {
		w := f.do(t, caller{tenantID: 1, branchID: branchID}, http.MethodPost, "/purchase-orders",
			map[string]any{"client_id": clientID, "total_amount": "250.50"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var po trade.PurchaseOrderResponse
		env := decode(t, w, &po)
		require.NotNil(t, env.Scope)
		require.NotNil(t, env.Scope.BranchID)
		assert.Equal(t, branchID, *env.Scope.BranchID)
		return po
	}

	first := create(1)
	second := create(2)
	assert.Equal(t, "PO-001", first.DocumentNumber)
	assert.Equal(t, "PO-002", second.DocumentNumber)
	require.NotNil(t, first.BranchID)
	assert.Equal(t, int64(1), *first.BranchID)

	w := f.do(t, caller{tenantID: 1, branchID: 1}, http.MethodGet, "/purchase-orders", nil)
	var list []trade.PurchaseOrderResponse
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	w = f.do(t, tenantWide, http.MethodGet, "/purchase-orders", nil)
	decode(t, w, &list)
	assert.Len(t, list, 2)

	w = f.do(t, caller{tenantID: 1, branchID: 2}, http.MethodGet, "/purchase-orders/"+strconv.FormatInt(first.ID, 10), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, caller{tenantID: 1, branchID: 1}, http.MethodDelete, "/purchase-orders/"+strconv.FormatInt(first.ID, 10), nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	var stored models.PurchaseOrderModel
	require.NoError(t, f.db.First(&stored, first.ID).Error)
	assert.Equal(t, models.PurchaseOrderStatusCancelled, stored.Status)
}

func TestPurchaseOrderHandler_InvalidBranchHeader(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/purchase-orders", nil)
	req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+f.token(t, caller{tenantID: 1}))
	req.Header.Set("company-branch-id", "main")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decode(t, w, nil).Error.Code)
}

func TestPurchaseOrderHandler_UnknownClient(t *testing.T) {
	f := newAPIFixture(t)
	foreignClient := f.createClient(t, caller{tenantID: 2}, "C1")

	w := f.do(t, caller{tenantID: 1}, http.MethodPost, "/purchase-orders", map[string]any{"client_id": foreignClient})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var count int64
	require.NoError(t, f.db.Model(&models.DocumentSequenceModel{}).Count(&count).Error)
	assert.Zero(t, count, "no number is issued for a rejected document")
}

func TestGoodsReceiptAndInvoiceHandlers(t *testing.T) {
	f := newAPIFixture(t)
	who := caller{tenantID: 3, branchID: 1}
	clientID := f.createClient(t, caller{tenantID: 3}, "C1")

	w := f.do(t, who, http.MethodPost, "/grns", map[string]any{"client_id": clientID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var grn trade.GoodsReceiptResponse
	decode(t, w, &grn)
	assert.Equal(t, "GRN-001", grn.DocumentNumber)

	w = f.do(t, who, http.MethodDelete, "/grns/"+strconv.FormatInt(grn.ID, 10), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, who, http.MethodGet, "/grns/"+strconv.FormatInt(grn.ID, 10), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, who, http.MethodPost, "/invoices", map[string]any{"client_id": clientID, "sub_total": "100", "tax_amount": "18"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv trade.InvoiceResponse
	decode(t, w, &inv)
	assert.Equal(t, "INV-001", inv.DocumentNumber)

	w = f.do(t, who, http.MethodPost, "/invoices/"+strconv.FormatInt(inv.ID, 10)+"/cancel", nil)
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = f.do(t, who, http.MethodPost, "/invoices", map[string]any{"client_id": clientID, "sub_total": "50"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &inv)
	assert.Equal(t, "INV-002", inv.DocumentNumber, "cancelled numbers are not reused")
	require.NoError(t, f.db.Model(&models.InvoiceModel{}).Where("id = ?", inv.ID).
		Update("status", models.InvoiceStatusPaid).Error)

	w = f.do(t, who, http.MethodPost, "/invoices/"+strconv.FormatInt(inv.ID, 10)+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, decode(t, w, nil).Error.Code)
}

func TestNumberingHandler(t *testing.T) {
	f := newAPIFixture(t)
	who := caller{tenantID: 1}

	w := f.do(t, who, http.MethodGet, "/numbering/PO", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cfg appnumbering.ConfigResponse
	decode(t, w, &cfg)
	assert.True(t, cfg.IsDefault)
	assert.Equal(t, "PO-001", cfg.Example)

	w = f.do(t, who, http.MethodPut, "/numbering/PO", map[string]any{"prefix": "PUR", "separator": "/", "digit_width": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &cfg)
	assert.False(t, cfg.IsDefault)
	assert.Equal(t, "PUR/00001", cfg.Example)

	w = f.do(t, who, http.MethodGet, "/numbering/PO/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview appnumbering.PreviewResponse
	decode(t, w, &preview)
	assert.Equal(t, int64(1), preview.NextSequence)
	assert.Equal(t, "PUR/00001", preview.NextNumber)

	// other tenants keep the default
	w = f.do(t, caller{tenantID: 2}, http.MethodGet, "/numbering/PO/preview", nil)
	decode(t, w, &preview)
	assert.Equal(t, "PO-001", preview.NextNumber)

	w = f.do(t, who, http.MethodGet, "/numbering/XYZ", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeUnknownDocumentType, decode(t, w, nil).Error.Code)
}

func TestSettingsHandler(t *testing.T) {
	f := newAPIFixture(t)
	who := caller{tenantID: 1}

	w := f.do(t, who, http.MethodGet, "/settings/company", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var s settings.SettingsResponse
	decode(t, w, &s)
	assert.Equal(t, "UTC", s.Timezone)
	assert.Equal(t, "24-hour", s.TimeFormat)

	w = f.do(t, who, http.MethodPut, "/settings/company", map[string]any{"date_format": "YYYY/MM/DD", "time_format": "12-hour"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, who, http.MethodGet, "/settings/company", nil)
	decode(t, w, &s)
	assert.Equal(t, "YYYY/MM/DD", s.DateFormat)
	assert.Equal(t, "12-hour", s.TimeFormat)

	w = f.do(t, who, http.MethodPut, "/settings/company", map[string]any{"timezone": "Nowhere/Atlantis"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decode(t, w, nil).Error.Code)
}

func TestAuthHandler_MeAndLogout(t *testing.T) {
	f := newAPIFixture(t)
	who := caller{tenantID: 5, branchID: 2}
	token := f.token(t, who)

	send := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/v1"+path, nil)
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
		req.Header.Set("company-branch-id", "2")
		w := httptest.NewRecorder()
		f.engine.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodGet, "/auth/me")
	require.Equal(t, http.StatusOK, w.Code)
	var session SessionResponse
	decode(t, w, &session)
	assert.Equal(t, int64(5), session.TenantID)
	require.NotNil(t, session.BranchID)
	assert.Equal(t, int64(2), *session.BranchID)
	assert.Equal(t, "tester", session.Username)

	assert.Equal(t, http.StatusNoContent, send(http.MethodPost, "/auth/logout").Code)

	w = send(http.MethodGet, "/auth/me")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeTokenRevoked, decode(t, w, nil).Error.Code)
}

func TestAdminHandler(t *testing.T) {
	f := newAPIFixture(t)
	f.createClient(t, caller{tenantID: 1}, "SHARED")
	f.createClient(t, caller{tenantID: 2}, "SHARED")
	f.createClient(t, caller{tenantID: 2}, "OTHER")

	w := f.do(t, caller{tenantID: 1}, http.MethodGet, "/admin/clients", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := caller{roles: []string{auth.RoleAdmin}}
	w = f.do(t, admin, http.MethodGet, "/admin/clients?code=SHARED", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var clients []partner.ClientResponse
	env := decode(t, w, &clients)
	assert.Len(t, clients, 2)
	assert.Equal(t, int64(2), env.Meta.Total)

	w = f.do(t, admin, http.MethodGet, "/admin/clients?tenant_id=2", nil)
	decode(t, w, &clients)
	assert.Len(t, clients, 2)

	w = f.do(t, admin, http.MethodGet, "/admin/outbox/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats appevent.OutboxStatsDTO
	decode(t, w, &stats)
	assert.Zero(t, stats.Total)

	w = f.do(t, admin, http.MethodGet, "/admin/outbox/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
