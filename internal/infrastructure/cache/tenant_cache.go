package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/domain/numbering"
	"github.com/erp/mfgerp/internal/domain/timefmt"
	"github.com/erp/mfgerp/internal/infrastructure/config"
)

// TenantCache holds per-tenant numbering configs and display settings in
// two tiers. L1 is local to the instance; L2 is Redis and optional.
// Writes go to both tiers and are broadcast so peers drop their L1 copy.
type TenantCache struct {
	numbering   *LocalCache[numbering.Config]
	settings    *LocalCache[timefmt.Settings]
	l2          *RedisStore
	invalidator *RedisInvalidator
	logger      *zap.Logger
}

// NewTenantCache creates a tenant cache. client may be nil, in which case
// only the local tier is used.
func NewTenantCache(cfg config.CacheConfig, client *redis.Client, logger *zap.Logger) *TenantCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &TenantCache{
		numbering: NewLocalCache[numbering.Config](cfg.LocalTTL, cfg.MaxEntries, logger),
		settings:  NewLocalCache[timefmt.Settings](cfg.LocalTTL, cfg.MaxEntries, logger),
		logger:    logger,
	}
	if client != nil {
		c.l2 = NewRedisStore(client, cfg.RedisPrefix, cfg.RemoteTTL, logger)
		c.invalidator = NewRedisInvalidator(client, cfg.RedisPrefix+defaultInvalidationSuffix, uuid.NewString(), logger)
	}
	return c
}

func numberingKey(tenantID int64, dt numbering.DocumentType) string {
	return fmt.Sprintf("numbering:%d:%s", tenantID, dt)
}

func settingsKey(tenantID int64) string {
	return fmt.Sprintf("settings:%d", tenantID)
}

// GetNumberingConfig returns the cached effective config of (tenantID, dt).
func (c *TenantCache) GetNumberingConfig(ctx context.Context, tenantID int64, dt numbering.DocumentType) (numbering.Config, bool) {
	return get(ctx, c, c.numbering, numberingKey(tenantID, dt))
}

// SetNumberingConfig caches cfg for its tenant and type.
func (c *TenantCache) SetNumberingConfig(ctx context.Context, cfg numbering.Config) {
	set(ctx, c, c.numbering, numberingKey(cfg.TenantID, cfg.DocumentType), cfg)
}

// InvalidateNumberingConfig drops the cached config of (tenantID, dt) on
// every instance.
func (c *TenantCache) InvalidateNumberingConfig(ctx context.Context, tenantID int64, dt numbering.DocumentType) {
	c.invalidate(ctx, numberingKey(tenantID, dt))
}

// GetSettings returns the cached display settings of a tenant.
func (c *TenantCache) GetSettings(ctx context.Context, tenantID int64) (timefmt.Settings, bool) {
	return get(ctx, c, c.settings, settingsKey(tenantID))
}

// SetSettings caches the display settings of a tenant.
func (c *TenantCache) SetSettings(ctx context.Context, tenantID int64, s timefmt.Settings) {
	set(ctx, c, c.settings, settingsKey(tenantID), s)
}

// InvalidateSettings drops the cached settings of a tenant on every instance.
func (c *TenantCache) InvalidateSettings(ctx context.Context, tenantID int64) {
	c.invalidate(ctx, settingsKey(tenantID))
}

// StartInvalidationSubscription listens for invalidations from other
// instances until ctx is cancelled. It is a no-op without Redis.
func (c *TenantCache) StartInvalidationSubscription(ctx context.Context) error {
	if c.invalidator == nil {
		return nil
	}
	return c.invalidator.Subscribe(ctx, func(msg InvalidationMessage) {
		if msg.Key == "" {
			c.numbering.Clear()
			c.settings.Clear()
			return
		}
		c.numbering.Delete(msg.Key)
		c.settings.Delete(msg.Key)
	})
}

// Close stops background work.
func (c *TenantCache) Close() {
	c.numbering.Close()
	c.settings.Close()
	if c.invalidator != nil {
		_ = c.invalidator.Close()
	}
}

func get[V any](ctx context.Context, c *TenantCache, l1 *LocalCache[V], key string) (V, bool) {
	if v, ok := l1.Get(key); ok {
		return v, true
	}
	var v V
	if c.l2 == nil {
		return v, false
	}
	found, err := c.l2.Get(ctx, key, &v)
	if err != nil {
		c.logger.Warn("L2 cache read failed", zap.String("key", key), zap.Error(err))
		return v, false
	}
	if found {
		l1.Set(key, v)
	}
	return v, found
}

func set[V any](ctx context.Context, c *TenantCache, l1 *LocalCache[V], key string, v V) {
	l1.Set(key, v)
	if c.l2 == nil {
		return
	}
	if err := c.l2.Set(ctx, key, v); err != nil {
		c.logger.Warn("L2 cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *TenantCache) invalidate(ctx context.Context, key string) {
	c.numbering.Delete(key)
	c.settings.Delete(key)
	if c.l2 == nil {
		return
	}
	if err := c.l2.Delete(ctx, key); err != nil {
		c.logger.Warn("L2 cache delete failed", zap.String("key", key), zap.Error(err))
	}
	if err := c.invalidator.Publish(ctx, key); err != nil {
		c.logger.Warn("Cache invalidation broadcast failed", zap.String("key", key), zap.Error(err))
	}
}
