package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/mfgerp/internal/domain/numbering"
	"github.com/erp/mfgerp/internal/domain/timefmt"
	"github.com/erp/mfgerp/internal/infrastructure/config"
)

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		LocalTTL:    time.Minute,
		RemoteTTL:   time.Minute,
		MaxEntries:  100,
		RedisPrefix: "mfgerp-test:",
	}
}

func TestTenantCache_LocalOnly(t *testing.T) {
	c := NewTenantCache(testCacheConfig(), nil, nil)
	defer c.Close()
	ctx := context.Background()

	_, ok := c.GetNumberingConfig(ctx, 1, numbering.DocumentTypePurchaseOrder)
	assert.False(t, ok)

	cfg := numbering.Config{TenantID: 1, DocumentType: numbering.DocumentTypePurchaseOrder, Prefix: "PO", Separator: "-", DigitWidth: 3}
	c.SetNumberingConfig(ctx, cfg)

	got, ok := c.GetNumberingConfig(ctx, 1, numbering.DocumentTypePurchaseOrder)
	require.True(t, ok)
	assert.Equal(t, cfg, got)

	// Keys are per tenant.
	_, ok = c.GetNumberingConfig(ctx, 2, numbering.DocumentTypePurchaseOrder)
	assert.False(t, ok)

	c.InvalidateNumberingConfig(ctx, 1, numbering.DocumentTypePurchaseOrder)
	_, ok = c.GetNumberingConfig(ctx, 1, numbering.DocumentTypePurchaseOrder)
	assert.False(t, ok)

	assert.NoError(t, c.StartInvalidationSubscription(ctx))
}

func TestTenantCache_Settings(t *testing.T) {
	c := NewTenantCache(testCacheConfig(), nil, nil)
	defer c.Close()
	ctx := context.Background()

	s := timefmt.Settings{Timezone: "Asia/Kolkata", DateFormat: "DD/MM/YYYY", TimeStyle: timefmt.TimeStyle12Hour}
	c.SetSettings(ctx, 9, s)

	got, ok := c.GetSettings(ctx, 9)
	require.True(t, ok)
	assert.Equal(t, s, got)

	c.InvalidateSettings(ctx, 9)
	_, ok = c.GetSettings(ctx, 9)
	assert.False(t, ok)
}

// TestTenantCache_Redis runs against a real Redis when MFG_TEST_REDIS_ADDR is set.
func TestTenantCache_Redis(t *testing.T) {
	addr := os.Getenv("MFG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MFG_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	ctx := context.Background()
	writer := NewTenantCache(testCacheConfig(), client, nil)
	defer writer.Close()
	reader := NewTenantCache(testCacheConfig(), client, nil)
	defer reader.Close()

	cfg := numbering.Config{TenantID: 42, DocumentType: numbering.DocumentTypeInvoice, Prefix: "INV", Separator: "/", DigitWidth: 4}
	writer.SetNumberingConfig(ctx, cfg)

	// The second instance misses L1 and reads through L2.
	got, ok := reader.GetNumberingConfig(ctx, 42, numbering.DocumentTypeInvoice)
	require.True(t, ok)
	assert.Equal(t, cfg, got)

	writer.InvalidateNumberingConfig(ctx, 42, numbering.DocumentTypeInvoice)
	_, found, err := func() (numbering.Config, bool, error) {
		var v numbering.Config
		found, err := writer.l2.Get(ctx, numberingKey(42, numbering.DocumentTypeInvoice), &v)
		return v, found, err
	}()
	require.NoError(t, err)
	assert.False(t, found)
}
