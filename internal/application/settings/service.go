// Package settings manages per-tenant display preferences and hands out
// the timefmt.Display used when mapping responses.
package settings

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/domain/tenancy"
	"github.com/erp/mfgerp/internal/domain/timefmt"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
)

// Repository persists company settings
type Repository interface {
	Find(ctx context.Context, tenantID int64) (*timefmt.Settings, error)
	Save(ctx context.Context, tenantID int64, s timefmt.Settings) error
}

// Cache holds effective settings per tenant
type Cache interface {
	GetSettings(ctx context.Context, tenantID int64) (timefmt.Settings, bool)
	SetSettings(ctx context.Context, tenantID int64, s timefmt.Settings)
	InvalidateSettings(ctx context.Context, tenantID int64)
}

// UpdateSettingsRequest replaces a tenant's display settings. Empty fields
// keep their defaults.
type UpdateSettingsRequest struct {
	Timezone   string `json:"timezone" binding:"omitempty,max=64"`
	DateFormat string `json:"date_format" binding:"omitempty,max=32"`
	TimeFormat string `json:"time_format" binding:"omitempty,oneof=24-hour 12-hour"`
}

// SettingsResponse is the effective display configuration
type SettingsResponse struct {
	Timezone   string `json:"timezone"`
	DateFormat string `json:"date_format"`
	TimeFormat string `json:"time_format"`
}

func toResponse(s timefmt.Settings) *SettingsResponse {
	return &SettingsResponse{
		Timezone:   s.Timezone,
		DateFormat: s.DateFormat,
		TimeFormat: string(s.TimeStyle),
	}
}

// Service reads and writes company settings
type Service struct {
	repo       Repository
	cache      Cache
	normalizer *timefmt.Normalizer
	logger     *zap.Logger
}

// NewService creates a settings service. cache may be nil.
func NewService(repo Repository, cache Cache, normalizer *timefmt.Normalizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = timefmt.NewNormalizer(logger)
	}
	return &Service{repo: repo, cache: cache, normalizer: normalizer, logger: logger}
}

// Effective returns the tenant's settings: cache, stored row, defaults.
func (s *Service) Effective(ctx context.Context, tenantID int64) (timefmt.Settings, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetSettings(ctx, tenantID); ok {
			return cached, nil
		}
	}
	stored, err := s.repo.Find(ctx, tenantID)
	if err != nil {
		return timefmt.Settings{}, err
	}
	eff := timefmt.DefaultSettings()
	if stored != nil {
		eff = stored.WithDefaults()
	}
	if s.cache != nil {
		s.cache.SetSettings(ctx, tenantID, eff)
	}
	return eff, nil
}

// Display returns the formatter for the tenant's responses. A settings
// lookup failure is logged and rendered with the defaults.
func (s *Service) Display(ctx context.Context, tenantID int64) timefmt.Display {
	eff, err := s.Effective(ctx, tenantID)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Warn("failed to load company settings, using defaults",
			zap.Int64("tenant_id", tenantID),
			zap.Error(err))
		eff = timefmt.DefaultSettings()
	}
	return s.normalizer.For(eff)
}

// Get returns the requesting tenant's effective settings
func (s *Service) Get(ctx context.Context, tc tenancy.Context) (*SettingsResponse, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	eff, err := s.Effective(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}
	return toResponse(eff), nil
}

// Update validates and stores the requesting tenant's settings
func (s *Service) Update(ctx context.Context, tc tenancy.Context, req UpdateSettingsRequest) (*SettingsResponse, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	next := timefmt.Settings{
		Timezone:   strings.TrimSpace(req.Timezone),
		DateFormat: strings.TrimSpace(req.DateFormat),
		TimeStyle:  timefmt.TimeStyle(req.TimeFormat),
	}.WithDefaults()
	if err := next.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, tc.TenantID, next); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateSettings(ctx, tc.TenantID)
	}

	logger.WithLogger(ctx, s.logger).Info("company settings updated",
		zap.String("timezone", next.Timezone),
		zap.String("date_format", next.DateFormat),
		zap.String("time_format", string(next.TimeStyle)))
	return toResponse(next), nil
}
