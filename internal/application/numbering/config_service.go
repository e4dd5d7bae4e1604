package numbering

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/erp/mfgerp/internal/domain/numbering"
	"github.com/erp/mfgerp/internal/domain/tenancy"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
)

// ConfigRepository persists numbering configurations
type ConfigRepository interface {
	numbering.ConfigSource
	ListByTenant(ctx context.Context, tenantID int64) ([]numbering.Config, error)
	Upsert(ctx context.Context, cfg numbering.Config) error
}

// ConfigService manages the numbering setup of a tenant
type ConfigService struct {
	repo      ConfigRepository
	generator *Generator
	logger    *zap.Logger
}

// NewConfigService creates a new ConfigService
func NewConfigService(repo ConfigRepository, generator *Generator, logger *zap.Logger) *ConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigService{
		repo:      repo,
		generator: generator,
		logger:    logger,
	}
}

// Upsert stores the numbering setup of docType for the requesting tenant.
// The prefix is trimmed and upper-cased; separator and width fall back to
// the defaults when omitted. Numbers already issued are not renumbered.
func (s *ConfigService) Upsert(ctx context.Context, tc tenancy.Context, docType string, req UpsertConfigRequest) (*ConfigResponse, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	dt, err := numbering.ParseDocumentType(docType)
	if err != nil {
		return nil, err
	}

	cfg := numbering.Config{
		TenantID:     tc.TenantID,
		DocumentType: dt,
		Prefix:       cases.Upper(language.Und).String(strings.TrimSpace(req.Prefix)),
		Separator:    numbering.DefaultSeparator,
		DigitWidth:   numbering.DefaultDigitWidth,
	}
	if req.Separator != nil {
		cfg.Separator = *req.Separator
	}
	if req.DigitWidth > 0 {
		cfg.DigitWidth = req.DigitWidth
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, err
	}
	s.generator.Invalidate(ctx, tc.TenantID, dt)

	logger.WithLogger(ctx, s.logger).Info("numbering config updated",
		zap.String("document_type", string(dt)),
		zap.String("prefix", cfg.Prefix),
		zap.String("separator", cfg.Separator),
		zap.Int("digit_width", cfg.DigitWidth))

	resp := ToConfigResponse(cfg, false)
	return &resp, nil
}

// Get returns the effective setup of docType for the requesting tenant
func (s *ConfigService) Get(ctx context.Context, tc tenancy.Context, docType string) (*ConfigResponse, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	dt, err := numbering.ParseDocumentType(docType)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.FindConfig(ctx, tc.TenantID, dt)
	if err != nil {
		return nil, err
	}
	cfg, isDefault, err := Effective(ctx, s.logger, tc.TenantID, dt, stored)
	if err != nil {
		return nil, err
	}
	resp := ToConfigResponse(cfg, isDefault)
	return &resp, nil
}

// List returns the effective setup of every document type
func (s *ConfigService) List(ctx context.Context, tc tenancy.Context) ([]ConfigResponse, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	stored, err := s.repo.ListByTenant(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}
	byType := make(map[numbering.DocumentType]numbering.Config, len(stored))
	for _, c := range stored {
		byType[c.DocumentType] = c
	}

	types := numbering.DocumentTypes()
	out := make([]ConfigResponse, 0, len(types))
	for _, dt := range types {
		var found *numbering.Config
		if c, ok := byType[dt]; ok {
			found = &c
		}
		cfg, isDefault, err := Effective(ctx, s.logger, tc.TenantID, dt, found)
		if err != nil {
			return nil, err
		}
		out = append(out, ToConfigResponse(cfg, isDefault))
	}
	return out, nil
}

// Preview renders the next number of docType without consuming it
func (s *ConfigService) Preview(ctx context.Context, tc tenancy.Context, docType string) (*PreviewResponse, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	dt, err := numbering.ParseDocumentType(docType)
	if err != nil {
		return nil, err
	}
	num, err := s.generator.Preview(ctx, tc.TenantID, dt)
	if err != nil {
		return nil, err
	}
	return &PreviewResponse{
		DocumentType: string(dt),
		NextSequence: num.Sequence,
		NextNumber:   num.Value,
	}, nil
}
