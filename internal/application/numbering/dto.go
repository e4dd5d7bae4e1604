package numbering

import "github.com/erp/mfgerp/internal/domain/numbering"

// UpsertConfigRequest replaces a tenant's numbering setup for one type
type UpsertConfigRequest struct {
	Prefix     string  `json:"prefix" binding:"required,min=1,max=20"`
	Separator  *string `json:"separator" binding:"omitempty,max=3"`
	DigitWidth int     `json:"digit_width" binding:"omitempty,min=1,max=12"`
}

// ConfigResponse is the effective numbering setup of a document type
type ConfigResponse struct {
	DocumentType string `json:"document_type"`
	Prefix       string `json:"prefix"`
	Separator    string `json:"separator"`
	DigitWidth   int    `json:"digit_width"`
	IsDefault    bool   `json:"is_default"`
	Example      string `json:"example"`
}

// PreviewResponse shows the number the next document would receive
type PreviewResponse struct {
	DocumentType string `json:"document_type"`
	NextSequence int64  `json:"next_sequence"`
	NextNumber   string `json:"next_number"`
}

// ToConfigResponse converts a config to its API shape
func ToConfigResponse(cfg numbering.Config, isDefault bool) ConfigResponse {
	return ConfigResponse{
		DocumentType: string(cfg.DocumentType),
		Prefix:       cfg.Prefix,
		Separator:    cfg.Separator,
		DigitWidth:   cfg.DigitWidth,
		IsDefault:    isDefault,
		Example:      numbering.Render(cfg, 1),
	}
}
