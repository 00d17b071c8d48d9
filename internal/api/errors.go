// Package api provides the HTTP surface of the discovery engine, including
// standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nearlist/nearlist/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeLocationUnresolved indicates a place name with no gazetteer match.
	ErrCodeLocationUnresolved = "location_unresolved"

	// ErrCodeInvalidRadius indicates a non-positive or over-cap search radius.
	ErrCodeInvalidRadius = "invalid_radius"

	// ErrCodePageOutOfRange indicates invalid pagination parameters.
	ErrCodePageOutOfRange = "page_out_of_range"

	// ErrCodeSelfVote indicates a voter targeting their own reputation.
	ErrCodeSelfVote = "self_vote"

	// ErrCodeCooldownActive indicates the voter account is too young to vote.
	ErrCodeCooldownActive = "cooldown_active"

	// ErrCodeInvalidWeightClass indicates an unknown vote weight class.
	ErrCodeInvalidWeightClass = "invalid_weight_class"

	// ErrCodeDecayAlreadyRan indicates the decay window was already reset.
	ErrCodeDecayAlreadyRan = "decay_already_ran"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
// It writes the appropriate HTTP status code and returns a JSON error body.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
//
// The error_code is automatically logged by the logging middleware for all
// 4xx and 5xx responses when the handler calls SetErrorCode on the context
// and passes the updated context to WriteError:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Listing not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	// Update the context in the response writer if supported (for logging middleware)
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for common error codes.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeInvalidRadius,
		ErrCodePageOutOfRange, ErrCodeInvalidWeightClass:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeLocationUnresolved:
		return http.StatusNotFound
	case ErrCodeSelfVote:
		return http.StatusUnprocessableEntity
	case ErrCodeCooldownActive:
		return http.StatusForbidden
	case ErrCodeDecayAlreadyRan:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps a domain error to its code and writes the response.
func writeDomainError(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// writeJSON writes a JSON success response with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
