package domain

import "errors"

// APIError represents a standardized API error with HTTP status code
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// ValidationFieldError maps a field name to its validation error message
type ValidationFieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationMessages provides human-readable validation error messages
var ValidationMessages = map[string]string{
	"required": "This field is required",
	"max":      "Exceeds maximum length",
	"min":      "Below minimum length",
	"len":      "Must be exactly the specified length",
	"gt":       "Must be greater than minimum value",
	"gte":      "Must be greater than or equal to minimum value",
	"uuid":     "Must be a valid UUID",
	"oneof":    "Must be one of the allowed values",
	"numeric":  "Must be a numeric value",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := ValidationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}

// Common error types for RFC 7807 Problem Details
const (
	ErrorTypeValidation   = "validation_error"
	ErrorTypeNotFound     = "not_found"
	ErrorTypeBadRequest   = "bad_request"
	ErrorTypeConflict     = "conflict"
	ErrorTypeUnauthorized = "unauthorized"
	ErrorTypeForbidden    = "forbidden"
	ErrorTypeInternal     = "internal_error"
	ErrorTypeStorage      = "storage_error"
)

// Lookup errors returned by the company directory and product catalog adapters
var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrProductNotFound = errors.New("product not found")
)
