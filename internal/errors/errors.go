package errors

import (
	"fmt"
	"net/http"
)

// APIError is the transport-level error shape. Handlers do not build these
// directly for domain failures; they surface an AppError and let
// FromAppError pick the status and code.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// New builds an APIError from its parts.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails builds an APIError carrying extra context for the client.
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// The error catalog. Every code the API can return has an entry here so
// clients have one place to look up semantics.
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrUnknownDimension = New(http.StatusBadRequest, "UNKNOWN_DIMENSION", "Unknown grouping dimension")
	ErrInvalidParameter = New(http.StatusBadRequest, "INVALID_PARAMETER", "Invalid parameter value")

	// 404 Not Found
	ErrNotFound = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")

	// 409 Conflict
	ErrRefreshInProgress = New(http.StatusConflict, "REFRESH_IN_PROGRESS", "A dataset refresh is already running")

	// 422 Unprocessable Entity
	ErrUnprocessableEntity = New(http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "Request could not be processed")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	// 500 Internal Server Error
	ErrInternalServer   = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrWebSocketUpgrade = New(http.StatusInternalServerError, "WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed")

	// 503 Service Unavailable
	ErrDataUnavailable = New(http.StatusServiceUnavailable, "DATA_UNAVAILABLE", "No dataset is loaded")
)

// FromAppError maps a domain AppError onto the catalog. The handler layer
// never invents status codes; it goes through this mapping.
func FromAppError(err *AppError) *APIError {
	switch err.Type {
	case ErrTypeUnavailable:
		return NewWithDetails(http.StatusServiceUnavailable, "DATA_UNAVAILABLE", err.Message, err.Context)
	case ErrTypeValidation:
		return NewWithDetails(http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Message, err.Context)
	case ErrTypeSchema:
		return NewWithDetails(http.StatusUnprocessableEntity, "SCHEMA_MISMATCH", err.Message, err.Context)
	case ErrTypeNotFound:
		return New(http.StatusNotFound, "NOT_FOUND", err.Message)
	case ErrTypeConflict:
		return New(http.StatusConflict, "REFRESH_IN_PROGRESS", err.Message)
	default:
		return New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Message)
	}
}

// UnknownDimensionError names the rejected dimension slug.
func UnknownDimensionError(dimension string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "UNKNOWN_DIMENSION",
		fmt.Sprintf("unknown grouping dimension %q", dimension), dimension)
}
