package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/mfgerp/internal/domain/numbering"
	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/infrastructure/persistence"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func newTestGenerator(db *gorm.DB, opts GeneratorOptions) (*Generator, *persistence.GormNumberingConfigRepository) {
	repo := persistence.NewGormNumberingConfigRepository(db)
	alloc := persistence.NewGormSequenceAllocator(nil, 0, nil)
	return NewGenerator(db, repo, alloc, opts), repo
}

// memCache is a ConfigCache backed by a map
type memCache struct {
	mu          sync.Mutex
	items       map[string]numbering.Config
	hits        int
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string]numbering.Config)}
}

func cacheKey(tenantID int64, dt numbering.DocumentType) string {
	return fmt.Sprintf("%d:%s", tenantID, dt)
}

func (c *memCache) GetNumberingConfig(_ context.Context, tenantID int64, dt numbering.DocumentType) (numbering.Config, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.items[cacheKey(tenantID, dt)]
	if ok {
		c.hits++
	}
	return cfg, ok
}

func (c *memCache) SetNumberingConfig(_ context.Context, cfg numbering.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[cacheKey(cfg.TenantID, cfg.DocumentType)] = cfg
}

func (c *memCache) InvalidateNumberingConfig(_ context.Context, tenantID int64, dt numbering.DocumentType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, cacheKey(tenantID, dt))
	c.invalidated++
}

// scriptedAllocator returns queued results in order
type scriptedAllocator struct {
	mu      sync.Mutex
	results []error
	next    int64
	calls   int
}

func (a *scriptedAllocator) Allocate(context.Context, *gorm.DB, int64, numbering.DocumentType) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if len(a.results) > 0 {
		err := a.results[0]
		a.results = a.results[1:]
		if err != nil {
			return 0, err
		}
	}
	a.next++
	return a.next, nil
}

func (a *scriptedAllocator) Peek(context.Context, *gorm.DB, int64, numbering.DocumentType) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next + 1, nil
}

func TestGenerator_NextID_DefaultConfig(t *testing.T) {
	db := setupTestDB(t)
	gen, _ := newTestGenerator(db, GeneratorOptions{})
	ctx := context.Background()

	first, err := gen.NextID(ctx, 1, numbering.DocumentTypeGoodsReceipt)
	require.NoError(t, err)
	assert.Equal(t, "GRN-001", first.Value)
	assert.Equal(t, int64(1), first.Sequence)

	second, err := gen.NextID(ctx, 1, numbering.DocumentTypeGoodsReceipt)
	require.NoError(t, err)
	assert.Equal(t, "GRN-002", second.Value)

	// Another tenant has its own counter.
	other, err := gen.NextID(ctx, 2, numbering.DocumentTypeGoodsReceipt)
	require.NoError(t, err)
	assert.Equal(t, "GRN-001", other.Value)
}

func TestGenerator_NextID_TenantConfig(t *testing.T) {
	db := setupTestDB(t)
	gen, repo := newTestGenerator(db, GeneratorOptions{})
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, numbering.Config{
		TenantID: 3, DocumentType: numbering.DocumentTypeInvoice,
		Prefix: "INV", Separator: "#", DigitWidth: 4,
	}))

	num, err := gen.NextID(ctx, 3, numbering.DocumentTypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, "INV#0001", num.Value)
}

func TestGenerator_NextID_WidensPastDigitWidth(t *testing.T) {
	db := setupTestDB(t)
	gen, _ := newTestGenerator(db, GeneratorOptions{})
	ctx := context.Background()

	require.NoError(t, db.Create(&models.DocumentSequenceModel{
		TenantID: 1, DocumentType: string(numbering.DocumentTypePurchaseOrder),
		LastValue: 999, UpdatedAt: time.Now(),
	}).Error)

	num, err := gen.NextID(ctx, 1, numbering.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "PO-1000", num.Value)
}

func TestGenerator_UnknownDocumentType(t *testing.T) {
	db := setupTestDB(t)
	gen, _ := newTestGenerator(db, GeneratorOptions{})

	_, err := gen.NextID(context.Background(), 1, numbering.DocumentType("BOM"))
	assert.ErrorIs(t, err, shared.ErrUnknownDocumentType)

	// Nothing was consumed.
	var n int64
	require.NoError(t, db.Model(&models.DocumentSequenceModel{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestGenerator_MissingTenant(t *testing.T) {
	db := setupTestDB(t)
	gen, _ := newTestGenerator(db, GeneratorOptions{})
	ctx := context.Background()

	_, err := gen.NextID(ctx, 0, numbering.DocumentTypePurchaseOrder)
	assert.ErrorIs(t, err, shared.ErrMissingTenant)

	_, err = gen.Preview(ctx, 0, numbering.DocumentTypePurchaseOrder)
	assert.ErrorIs(t, err, shared.ErrMissingTenant)

	_, err = gen.ResolveConfig(ctx, -1, numbering.DocumentTypePurchaseOrder)
	assert.ErrorIs(t, err, shared.ErrMissingTenant)
}

func TestGenerator_InvalidStoredConfigFallsBackToDefault(t *testing.T) {
	db := setupTestDB(t)
	core, logs := observer.New(zap.WarnLevel)
	gen, _ := newTestGenerator(db, GeneratorOptions{Logger: zap.New(core)})
	ctx := context.Background()

	// Written around validation, e.g. by an old import.
	require.NoError(t, db.Create(&models.NumberingConfigModel{
		TenantID: 1, DocumentType: "PO", Prefix: "P0", Separator: "-", DigitWidth: 3,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}).Error)

	num, err := gen.NextID(ctx, 1, numbering.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "PO-001", num.Value)
	assert.Equal(t, 1, logs.FilterMessage("stored numbering config is invalid, using default").Len())
}

func TestGenerator_NextIDTx_RollbackReleasesNumber(t *testing.T) {
	db := setupTestDB(t)
	gen, _ := newTestGenerator(db, GeneratorOptions{})
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		num, err := gen.NextIDTx(ctx, tx, 1, numbering.DocumentTypePurchaseOrder)
		require.NoError(t, err)
		assert.Equal(t, "PO-001", num.Value)
		return errors.New("document insert failed")
	})
	require.Error(t, err)

	num, err := gen.NextID(ctx, 1, numbering.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "PO-001", num.Value)
}

func TestGenerator_PreviewDoesNotConsume(t *testing.T) {
	db := setupTestDB(t)
	gen, _ := newTestGenerator(db, GeneratorOptions{})
	ctx := context.Background()

	preview, err := gen.Preview(ctx, 1, numbering.DocumentTypeGoodsReceipt)
	require.NoError(t, err)
	assert.Equal(t, "GRN-001", preview.Value)

	again, err := gen.Preview(ctx, 1, numbering.DocumentTypeGoodsReceipt)
	require.NoError(t, err)
	assert.Equal(t, preview, again)

	issued, err := gen.NextID(ctx, 1, numbering.DocumentTypeGoodsReceipt)
	require.NoError(t, err)
	assert.Equal(t, preview, issued)

	next, err := gen.Preview(ctx, 1, numbering.DocumentTypeGoodsReceipt)
	require.NoError(t, err)
	assert.Equal(t, "GRN-002", next.Value)
}

func TestGenerator_ConcurrentNextIDAreDistinct(t *testing.T) {
	db := setupTestDB(t)
	gen, _ := newTestGenerator(db, GeneratorOptions{})
	ctx := context.Background()

	const workers = 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := gen.NextID(ctx, 1, numbering.DocumentTypeGoodsReceipt)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[num.Value], "duplicate %s", num.Value)
			seen[num.Value] = true
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers)
	assert.True(t, seen["GRN-001"])
	assert.True(t, seen["GRN-025"])
}

func TestGenerator_RetriesSequenceConflicts(t *testing.T) {
	db := setupTestDB(t)
	repo := persistence.NewGormNumberingConfigRepository(db)
	alloc := &scriptedAllocator{results: []error{shared.ErrSequenceConflict, shared.ErrSequenceConflict}}
	gen := NewGenerator(db, repo, alloc, GeneratorOptions{RetryAttempts: 3, RetryBackoff: time.Millisecond})

	num, err := gen.NextID(context.Background(), 1, numbering.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "PO-001", num.Value)
	assert.Equal(t, 3, alloc.calls)
}

func TestGenerator_GivesUpAfterRetryAttempts(t *testing.T) {
	db := setupTestDB(t)
	repo := persistence.NewGormNumberingConfigRepository(db)
	alloc := &scriptedAllocator{results: []error{
		shared.ErrSequenceConflict, shared.ErrSequenceConflict, shared.ErrSequenceConflict,
	}}
	gen := NewGenerator(db, repo, alloc, GeneratorOptions{RetryAttempts: 2, RetryBackoff: time.Millisecond})

	_, err := gen.NextID(context.Background(), 1, numbering.DocumentTypePurchaseOrder)
	assert.ErrorIs(t, err, shared.ErrSequenceConflict)
	assert.Equal(t, 2, alloc.calls)
}

func TestGenerator_OtherErrorsAreNotRetried(t *testing.T) {
	db := setupTestDB(t)
	repo := persistence.NewGormNumberingConfigRepository(db)
	boom := errors.New("connection reset")
	alloc := &scriptedAllocator{results: []error{boom}}
	gen := NewGenerator(db, repo, alloc, GeneratorOptions{RetryAttempts: 5, RetryBackoff: time.Millisecond})

	_, err := gen.NextID(context.Background(), 1, numbering.DocumentTypePurchaseOrder)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, alloc.calls)
}

func TestGenerator_UsesCache(t *testing.T) {
	db := setupTestDB(t)
	cache := newMemCache()
	gen, repo := newTestGenerator(db, GeneratorOptions{Cache: cache})
	ctx := context.Background()

	_, err := gen.NextID(ctx, 1, numbering.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits)

	preview, err := gen.Preview(ctx, 1, numbering.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "PO-002", preview.Value)
	assert.Equal(t, 1, cache.hits)

	// lookups keep the cached config until it is invalidated
	require.NoError(t, repo.Upsert(ctx, numbering.Config{
		TenantID: 1, DocumentType: numbering.DocumentTypePurchaseOrder,
		Prefix: "PUR", Separator: "/", DigitWidth: 5,
	}))
	cfg, err := gen.ResolveConfig(ctx, 1, numbering.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "PO", cfg.Prefix)

	// issuance reads the stored row and refreshes the cache
	num, err := gen.NextID(ctx, 1, numbering.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "PUR/00002", num.Value)

	cfg, err = gen.ResolveConfig(ctx, 1, numbering.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "PUR", cfg.Prefix)
}

func TestGenerator_StaleCacheEntryAfterInvalidate(t *testing.T) {
	db := setupTestDB(t)
	cache := newMemCache()
	gen, repo := newTestGenerator(db, GeneratorOptions{Cache: cache})
	ctx := context.Background()

	old, err := gen.ResolveConfig(ctx, 1, numbering.DocumentTypeInvoice)
	require.NoError(t, err)

	// a lookup that read the old row finishes after the update invalidated
	// the key and writes the old config back
	require.NoError(t, repo.Upsert(ctx, numbering.Config{
		TenantID: 1, DocumentType: numbering.DocumentTypeInvoice,
		Prefix: "BILL", Separator: "-", DigitWidth: 4,
	}))
	gen.Invalidate(ctx, 1, numbering.DocumentTypeInvoice)
	cache.SetNumberingConfig(ctx, old)

	num, err := gen.NextID(ctx, 1, numbering.DocumentTypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, "BILL-0001", num.Value)

	cached, ok := cache.GetNumberingConfig(ctx, 1, numbering.DocumentTypeInvoice)
	require.True(t, ok)
	assert.Equal(t, "BILL", cached.Prefix)
}

func TestGenerator_RunInTx(t *testing.T) {
	db := setupTestDB(t)
	repo := persistence.NewGormNumberingConfigRepository(db)
	alloc := &scriptedAllocator{results: []error{shared.ErrSequenceConflict}}
	gen := NewGenerator(db, repo, alloc, GeneratorOptions{RetryBackoff: time.Millisecond})

	var issued []string
	err := gen.RunInTx(context.Background(), numbering.DocumentTypeInvoice, func(tx *gorm.DB) error {
		num, err := gen.NextIDTx(context.Background(), tx, 1, numbering.DocumentTypeInvoice)
		if err != nil {
			return err
		}
		issued = append(issued, num.Value)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-001"}, issued)
}
