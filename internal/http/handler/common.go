package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/auth"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/service"
	"go.uber.org/zap"
)

var validate = validator.New()

// respondJSON writes data as JSON. HTML characters are left unescaped so form
// drafts come back with the text their authors saved.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(data)
	}
}

// respondValidationError sends a standardized validation error response with specific field messages
func respondValidationError(w http.ResponseWriter, err error) {
	errs := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			errs[toJSONFieldName(fe.Field())] = formatValidationError(fe)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   domain.ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "One or more fields failed validation",
		Errors: errs,
	})
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// toJSONFieldName converts a Go struct field name to its JSON equivalent (camelCase)
func toJSONFieldName(field string) string {
	if len(field) == 0 {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   getErrorType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: message,
	})
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeBadRequest
	case http.StatusUnauthorized:
		return domain.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return domain.ErrorTypeForbidden
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusBadGateway:
		return domain.ErrorTypeStorage
	default:
		return domain.ErrorTypeInternal
	}
}

// ErrorMapper turns service errors into HTTP responses
type ErrorMapper struct {
	access               *service.DealAccessService
	distinguishForbidden bool
	logger               *zap.Logger
}

// NewErrorMapper creates the error mapper. With distinguishForbidden a
// not-found on a deal that exists but belongs to other companies becomes 403.
func NewErrorMapper(access *service.DealAccessService, distinguishForbidden bool, logger *zap.Logger) *ErrorMapper {
	return &ErrorMapper{access: access, distinguishForbidden: distinguishForbidden, logger: logger}
}

// respond writes err for a request scoped to dealID (uuid.Nil when none)
func (m *ErrorMapper) respond(w http.ResponseWriter, r *http.Request, err error, dealID uuid.UUID, action string) {
	if errors.Is(err, service.ErrNotFound) && m.distinguishForbidden && dealID != uuid.Nil {
		if refined := m.access.Classify(r.Context(), dealID, auth.CompanyIDFromContext(r.Context())); refined != nil {
			err = refined
		}
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrStorage):
		m.logger.Error("storage failure", zap.Error(err), zap.String("action", action), zap.String("deal_id", dealID.String()))
		respondWithError(w, http.StatusBadGateway, "Document storage is unavailable")
	default:
		m.logger.Error("request failed", zap.Error(err), zap.String("action", action), zap.String("deal_id", dealID.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

// actor returns the acting company or writes 401
func actor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == uuid.Nil {
		respondWithError(w, http.StatusUnauthorized, "No acting company for this request")
		return uuid.Nil, false
	}
	return companyID, true
}

// uuidParam parses a path parameter or writes 400
func uuidParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s: must be a valid UUID", label))
		return uuid.Nil, false
	}
	return id, true
}

// versionParam parses a positive version number
func versionParam(w http.ResponseWriter, raw string) (int, bool) {
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		respondWithError(w, http.StatusBadRequest, "Invalid version: must be a positive integer")
		return 0, false
	}
	return version, true
}

// decodeJSON decodes and validates a request body
func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return false
	}
	if err := validate.Struct(target); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}
