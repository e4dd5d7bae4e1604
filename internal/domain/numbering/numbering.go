// Package numbering renders per-tenant sequential document numbers such as
// PO-001 from a prefix, a separator and a minimum digit width.
package numbering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/erp/mfgerp/internal/domain/shared"
)

// DocumentType identifies a numbered business document.
type DocumentType string

const (
	DocumentTypePurchaseOrder   DocumentType = "PO"
	DocumentTypeGoodsReceipt    DocumentType = "GRN"
	DocumentTypeInvoice         DocumentType = "INV"
	DocumentTypeSalesOrder      DocumentType = "SO"
	DocumentTypeQuotation       DocumentType = "QT"
	DocumentTypeDeliveryChallan DocumentType = "DC"
	DocumentTypeProduction      DocumentType = "PS"
	DocumentTypeJobWork         DocumentType = "JW"
)

// Defaults applied when a tenant has no stored configuration.
const (
	DefaultSeparator  = "-"
	DefaultDigitWidth = 3

	MaxDigitWidth   = 12
	MaxPrefixLength = 20
	MaxSeparatorLen = 3
)

var defaultPrefixes = map[DocumentType]string{
	DocumentTypePurchaseOrder:   "PO",
	DocumentTypeGoodsReceipt:    "GRN",
	DocumentTypeInvoice:         "INV",
	DocumentTypeSalesOrder:      "SO",
	DocumentTypeQuotation:       "QT",
	DocumentTypeDeliveryChallan: "DC",
	DocumentTypeProduction:      "PS",
	DocumentTypeJobWork:         "JW",
}

// ParseDocumentType normalises s and checks it against the known types.
func ParseDocumentType(s string) (DocumentType, error) {
	dt := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := defaultPrefixes[dt]; !ok {
		return "", shared.ErrUnknownDocumentType.WithMessage(fmt.Sprintf("unknown document type %q", s))
	}
	return dt, nil
}

// DocumentTypes returns every type that has a system default.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypePurchaseOrder,
		DocumentTypeGoodsReceipt,
		DocumentTypeInvoice,
		DocumentTypeSalesOrder,
		DocumentTypeQuotation,
		DocumentTypeDeliveryChallan,
		DocumentTypeProduction,
		DocumentTypeJobWork,
	}
}

// Config is a tenant's rendering setup for one document type.
type Config struct {
	TenantID     int64
	DocumentType DocumentType
	Prefix       string
	Separator    string
	DigitWidth   int
}

// Number is an issued document number.
type Number struct {
	Sequence int64
	Value    string
}

func (n Number) String() string {
	return n.Value
}

// DefaultConfig returns the system default for docType.
func DefaultConfig(docType DocumentType) (Config, error) {
	prefix, ok := defaultPrefixes[docType]
	if !ok {
		return Config{}, shared.ErrUnknownDocumentType.WithMessage(fmt.Sprintf("no default numbering for document type %q", docType))
	}
	return Config{
		DocumentType: docType,
		Prefix:       prefix,
		Separator:    DefaultSeparator,
		DigitWidth:   DefaultDigitWidth,
	}, nil
}

const digits = "0123456789"

// Validate checks a configuration before it is stored or used. Digits are
// allowed in the prefix unless the separator is empty.
func (c Config) Validate() error {
	if c.TenantID <= 0 {
		return shared.ErrMissingTenant
	}
	if _, ok := defaultPrefixes[c.DocumentType]; !ok {
		return shared.ErrUnknownDocumentType.WithMessage(fmt.Sprintf("unknown document type %q", c.DocumentType))
	}
	prefix := strings.TrimSpace(c.Prefix)
	if prefix == "" {
		return shared.ErrInvalidInput.WithMessage("prefix is required")
	}
	if utf8.RuneCountInString(prefix) > MaxPrefixLength {
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("prefix must be at most %d characters", MaxPrefixLength))
	}
	if utf8.RuneCountInString(c.Separator) > MaxSeparatorLen {
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("separator must be at most %d characters", MaxSeparatorLen))
	}
	if strings.ContainsAny(c.Separator, digits) {
		return shared.ErrInvalidInput.WithMessage("separator must not contain digits")
	}
	if c.Separator == "" && strings.ContainsAny(prefix[len(prefix)-1:], digits) {
		// PO2 + 001 and PO + 2001 would render the same value
		return shared.ErrInvalidInput.WithMessage("prefix must not end with a digit when the separator is empty")
	}
	if c.DigitWidth < 1 || c.DigitWidth > MaxDigitWidth {
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("digit width must be between 1 and %d", MaxDigitWidth))
	}
	return nil
}

// Render formats seq as prefix + separator + zero padded digits.
// Sequences wider than DigitWidth keep all their digits.
func Render(cfg Config, seq int64) string {
	digits := strconv.FormatInt(seq, 10)
	if pad := cfg.DigitWidth - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return cfg.Prefix + cfg.Separator + digits
}

// Issue renders seq and wraps it into a Number.
func Issue(cfg Config, seq int64) Number {
	return Number{Sequence: seq, Value: Render(cfg, seq)}
}

// ConfigSource resolves the stored configuration of a tenant.
// It returns (nil, nil) when the tenant has none.
type ConfigSource interface {
	FindConfig(ctx context.Context, tenantID int64, docType DocumentType) (*Config, error)
}
