// ABOUTME: Standardized error response types and helpers for HTTP handlers.
// ABOUTME: Maps scheduling errors onto status codes with a consistent JSON envelope.

package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/2389/monthcal/internal/event"
	"github.com/2389/monthcal/internal/schedule"
)

// ErrorResponse is the error body returned by every API handler.
//
// Usage:
//
//	WriteError(w, http.StatusBadRequest, "invalid_request", "The request body is malformed")
type ErrorResponse struct {
	Code    string `json:"code"`              // Machine-readable error code (e.g., "conflict", "not_found")
	Message string `json:"message"`           // Human-readable error message
	Status  int    `json:"status"`            // HTTP status code
	Field   string `json:"field,omitempty"`   // Field that failed validation
	Details string `json:"details,omitempty"` // Additional context
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
	})
}

// WriteErrorWithField writes an error response naming the offending field.
func WriteErrorWithField(w http.ResponseWriter, status int, code, message, field string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
		Field:   field,
	})
}

// WriteErrorWithDetails writes an error response with additional details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message, details string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
		Details: details,
	})
}

// FromError classifies err into an ErrorResponse. Storage failures are not
// handled here because the in-memory change has already been applied.
func FromError(err error) ErrorResponse {
	var (
		conflict   *schedule.ConflictError
		validation *event.ValidationError
	)
	switch {
	case stderrors.As(err, &conflict):
		e := conflict.Existing
		return ErrorResponse{
			Code:    ErrConflict,
			Message: "This event overlaps with an existing event.",
			Status:  http.StatusConflict,
			Details: fmt.Sprintf("conflicts with %q (id %d) on %s %s-%s", e.Name, e.ID, e.Date, e.StartTime, e.EndTime),
		}
	case stderrors.Is(err, schedule.ErrConflict):
		return ErrorResponse{Code: ErrConflict, Message: err.Error(), Status: http.StatusConflict}
	case stderrors.Is(err, schedule.ErrNotFound):
		return ErrorResponse{Code: ErrNotFound, Message: err.Error(), Status: http.StatusNotFound}
	case stderrors.As(err, &validation):
		return ErrorResponse{
			Code:    ErrValidationFailed,
			Message: validation.Message,
			Status:  http.StatusBadRequest,
			Field:   validation.Field,
		}
	case stderrors.Is(err, schedule.ErrDuplicateID):
		return ErrorResponse{Code: ErrConflict, Message: err.Error(), Status: http.StatusConflict}
	default:
		return ErrorResponse{Code: ErrInternal, Message: "Internal server error", Status: http.StatusInternalServerError, Details: err.Error()}
	}
}

// WriteDomainError writes the response FromError selects for err.
func WriteDomainError(w http.ResponseWriter, err error) {
	writeErrorResponse(w, FromError(err))
}

func writeErrorResponse(w http.ResponseWriter, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	json.NewEncoder(w).Encode(resp)
}

// Error codes shared by the API handlers.
const (
	// Client errors (4xx)
	ErrInvalidRequest   = "invalid_request"
	ErrInvalidBody      = "invalid_request_body"
	ErrMissingField     = "missing_field"
	ErrValidationFailed = "validation_failed"
	ErrNotFound         = "not_found"
	ErrUnauthorized     = "unauthorized"
	ErrConflict         = "conflict"

	// Server errors (5xx)
	ErrInternal     = "internal_error"
	ErrStorageError = "storage_error"
)
