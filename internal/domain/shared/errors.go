package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so wrapped copies created
// with WithMessage still match the sentinel through errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of the error with a more specific message
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{Code: e.Code, Message: message}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Scoping and numbering errors
var (
	// ErrMissingTenant means a scoped operation ran without a resolved tenant.
	// It points at a bug in the auth layer and surfaces as a server error.
	ErrMissingTenant = NewDomainError("MISSING_TENANT", "Tenant identity is required for this operation")

	// ErrCrossTenantAccess is returned when a request references a row owned
	// by another tenant or branch. It is rendered as not-found.
	ErrCrossTenantAccess = NewDomainError("CROSS_TENANT_ACCESS", "Resource not found")

	// ErrUnknownDocumentType is returned when numbering is requested for a
	// document type with neither a tenant configuration nor a system default.
	ErrUnknownDocumentType = NewDomainError("UNKNOWN_DOCUMENT_TYPE", "Unknown document type")

	// ErrSequenceConflict is returned when sequence allocation kept losing
	// to concurrent writers. Callers retry the allocation.
	ErrSequenceConflict = NewDomainError("SEQUENCE_CONFLICT", "Document sequence is busy, retry the request")

	// ErrFormatting marks a timestamp that could not be rendered for display.
	// The normalizer logs it and returns nil; it never reaches a response.
	ErrFormatting = NewDomainError("FORMATTING_ERROR", "Timestamp could not be formatted")
)
