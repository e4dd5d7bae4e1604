package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/erp/mfgerp/internal/domain/numbering"
	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
	"github.com/erp/mfgerp/internal/infrastructure/telemetry"
)

// Allocator hands out sequence values per (tenant, document type).
type Allocator interface {
	// Allocate consumes the next value inside tx. The value is released
	// again if tx rolls back.
	Allocate(ctx context.Context, tx *gorm.DB, tenantID int64, docType numbering.DocumentType) (int64, error)
	// Peek returns the value the next Allocate would return.
	Peek(ctx context.Context, db *gorm.DB, tenantID int64, docType numbering.DocumentType) (int64, error)
}

// ConfigCache holds effective numbering configs.
type ConfigCache interface {
	GetNumberingConfig(ctx context.Context, tenantID int64, dt numbering.DocumentType) (numbering.Config, bool)
	SetNumberingConfig(ctx context.Context, cfg numbering.Config)
	InvalidateNumberingConfig(ctx context.Context, tenantID int64, dt numbering.DocumentType)
}

// TxConfigSource is a ConfigSource that can read through a transaction.
// The generator uses it so config lookups share the allocation connection.
type TxConfigSource interface {
	numbering.ConfigSource
	BindTx(tx *gorm.DB) numbering.ConfigSource
}

// GeneratorOptions configures a Generator. Zero values use defaults.
type GeneratorOptions struct {
	RetryAttempts int
	RetryBackoff  time.Duration
	Cache         ConfigCache
	Metrics       *telemetry.NumberingMetrics
	Logger        *zap.Logger
}

// Generator issues per-tenant sequential document numbers.
type Generator struct {
	db            *gorm.DB
	source        numbering.ConfigSource
	allocator     Allocator
	cache         ConfigCache
	metrics       *telemetry.NumberingMetrics
	retryAttempts int
	retryBackoff  time.Duration
	logger        *zap.Logger
}

// NewGenerator creates a Generator
func NewGenerator(db *gorm.DB, source numbering.ConfigSource, allocator Allocator, opts GeneratorOptions) *Generator {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 20 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Generator{
		db:            db,
		source:        source,
		allocator:     allocator,
		cache:         opts.Cache,
		metrics:       opts.Metrics,
		retryAttempts: opts.RetryAttempts,
		retryBackoff:  opts.RetryBackoff,
		logger:        opts.Logger.Named("numbering"),
	}
}

// NextID issues a number in its own transaction. Sequence conflicts are
// retried with a linear backoff.
func (g *Generator) NextID(ctx context.Context, tenantID int64, docType numbering.DocumentType) (numbering.Number, error) {
	var num numbering.Number
	err := g.retry(ctx, docType, func() error {
		return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			n, err := g.NextIDTx(ctx, tx, tenantID, docType)
			if err != nil {
				return err
			}
			num = n
			return nil
		})
	})
	if err != nil {
		return numbering.Number{}, err
	}
	return num, nil
}

// NextIDTx issues a number inside the caller's transaction. The number is
// only consumed if tx commits; the caller owns retries. The config is read
// through tx rather than the cache, so an issued number never uses a config
// that was replaced before the transaction started.
func (g *Generator) NextIDTx(ctx context.Context, tx *gorm.DB, tenantID int64, docType numbering.DocumentType) (num numbering.Number, err error) {
	ctx, span := telemetry.StartSpan(ctx, "numbering", "next_id",
		attribute.Int64("tenant_id", tenantID),
		attribute.String("document_type", string(docType)))
	start := time.Now()
	defer func() {
		g.metrics.RecordAllocation(ctx, string(docType), time.Since(start), err)
		telemetry.RecordError(span, err)
		span.End()
	}()

	if tenantID <= 0 {
		return numbering.Number{}, shared.ErrMissingTenant
	}
	cfg, err := g.load(ctx, g.sourceFor(tx), tenantID, docType)
	if err != nil {
		return numbering.Number{}, err
	}

	seq, err := g.allocator.Allocate(ctx, tx, tenantID, docType)
	if err != nil {
		return numbering.Number{}, err
	}

	num = numbering.Issue(cfg, seq)
	span.SetAttributes(attribute.String("document_number", num.Value))
	logger.WithLogger(ctx, g.logger).Debug("document number issued",
		zap.String("document_type", string(docType)),
		zap.String("document_number", num.Value),
		zap.Int64("sequence", seq))
	return num, nil
}

// Preview renders the number the next allocation would issue without
// consuming it. Concurrent writers may take it first.
func (g *Generator) Preview(ctx context.Context, tenantID int64, docType numbering.DocumentType) (numbering.Number, error) {
	if tenantID <= 0 {
		return numbering.Number{}, shared.ErrMissingTenant
	}
	cfg, err := g.ResolveConfig(ctx, tenantID, docType)
	if err != nil {
		return numbering.Number{}, err
	}
	seq, err := g.allocator.Peek(ctx, g.db.WithContext(ctx), tenantID, docType)
	if err != nil {
		return numbering.Number{}, err
	}
	return numbering.Issue(cfg, seq), nil
}

// ResolveConfig returns the effective configuration of (tenantID, docType):
// cache, then the stored row, then the system default.
func (g *Generator) ResolveConfig(ctx context.Context, tenantID int64, docType numbering.DocumentType) (numbering.Config, error) {
	if tenantID <= 0 {
		return numbering.Config{}, shared.ErrMissingTenant
	}
	if g.cache != nil {
		if cfg, ok := g.cache.GetNumberingConfig(ctx, tenantID, docType); ok {
			return cfg, nil
		}
	}
	return g.load(ctx, g.source, tenantID, docType)
}

// Invalidate drops the cached config of (tenantID, docType).
func (g *Generator) Invalidate(ctx context.Context, tenantID int64, docType numbering.DocumentType) {
	if g.cache != nil {
		g.cache.InvalidateNumberingConfig(ctx, tenantID, docType)
	}
}

// load reads the effective config from src and refreshes the cache with it.
// A stale entry written by a racing lookup is overwritten on the next
// issuance.
func (g *Generator) load(ctx context.Context, src numbering.ConfigSource, tenantID int64, docType numbering.DocumentType) (numbering.Config, error) {
	stored, err := src.FindConfig(ctx, tenantID, docType)
	if err != nil {
		return numbering.Config{}, fmt.Errorf("load numbering config: %w", err)
	}
	cfg, _, err := Effective(ctx, g.logger, tenantID, docType, stored)
	if err != nil {
		return numbering.Config{}, err
	}

	if g.cache != nil {
		g.cache.SetNumberingConfig(ctx, cfg)
	}
	return cfg, nil
}

// Effective picks the stored config when it is valid and the system
// default otherwise. The bool reports whether the default was used.
func Effective(ctx context.Context, log *zap.Logger, tenantID int64, docType numbering.DocumentType, stored *numbering.Config) (numbering.Config, bool, error) {
	if stored != nil {
		verr := stored.Validate()
		if verr == nil {
			return *stored, false, nil
		}
		logger.WithLogger(ctx, log).Warn("stored numbering config is invalid, using default",
			zap.Int64("tenant_id", tenantID),
			zap.String("document_type", string(docType)),
			zap.Error(verr))
	}

	cfg, err := numbering.DefaultConfig(docType)
	if err != nil {
		return numbering.Config{}, false, err
	}
	cfg.TenantID = tenantID
	return cfg, true, nil
}

func (g *Generator) sourceFor(tx *gorm.DB) numbering.ConfigSource {
	if b, ok := g.source.(TxConfigSource); ok && tx != nil {
		return b.BindTx(tx)
	}
	return g.source
}

// retry runs fn until it succeeds, fails with something other than a
// sequence conflict, or the attempts are used up.
func (g *Generator) retry(ctx context.Context, docType numbering.DocumentType, fn func() error) error {
	var err error
	for attempt := 1; attempt <= g.retryAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, shared.ErrSequenceConflict) || attempt == g.retryAttempts {
			return err
		}

		g.metrics.RecordRetry(ctx, string(docType))
		logger.WithLogger(ctx, g.logger).Info("sequence conflict, retrying allocation",
			zap.String("document_type", string(docType)),
			zap.Int("attempt", attempt))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * g.retryBackoff):
		}
	}
	return err
}

// RunInTx runs fn in a transaction and retries the whole transaction when
// number allocation inside it hit a sequence conflict. Document services
// use it so the insert and the number always commit together.
func (g *Generator) RunInTx(ctx context.Context, docType numbering.DocumentType, fn func(tx *gorm.DB) error) error {
	return g.retry(ctx, docType, func() error {
		return g.db.WithContext(ctx).Transaction(fn)
	})
}
