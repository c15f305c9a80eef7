package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType buckets domain failures so the transport layer can map
// them to status codes without inspecting messages.
type ErrorType string

const (
	// ErrTypeSchema: a column required by later pipeline stages is
	// missing after normalization. Fatal, aborts the run.
	ErrTypeSchema ErrorType = "SCHEMA"

	// ErrTypeValidation: a row's field lies outside its defined domain.
	// Fatal; churn analytics correctness depends on complete labeling.
	ErrTypeValidation ErrorType = "VALIDATION"

	// ErrTypeUnavailable: no candidate data source could be loaded.
	// Fatal; Context["attempts"] carries every location and its reason.
	ErrTypeUnavailable ErrorType = "UNAVAILABLE"

	// ErrTypeDegenerate: quantile binning could not produce the requested
	// bucket count. Recoverable via the collapse policy, logged, never
	// silently ignored.
	ErrTypeDegenerate ErrorType = "DEGENERATE"

	ErrTypeStorage  ErrorType = "STORAGE"
	ErrTypeNotFound ErrorType = "NOT_FOUND"
	ErrTypeConflict ErrorType = "CONFLICT"
)

// AppError is the domain error type. Type drives the HTTP mapping in
// FromAppError; Context carries structured details that survive into
// problem documents and logs.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// NewAppError builds an AppError wrapping an optional cause.
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Error formats as "[TYPE] message", with the cause appended when present.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error { return e.Cause }

// WithContext attaches one structured detail and returns the error for
// chaining.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsType reports whether err is (or wraps) an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var app *AppError
	if stderrors.As(err, &app) {
		return app.Type == t
	}
	return false
}

// NewSchemaError reports a required column missing after normalization.
func NewSchemaError(column string) *AppError {
	return NewAppError(ErrTypeSchema,
		fmt.Sprintf("required column missing after normalization: %s", column), nil).
		WithContext("column", column)
}

// NewAppValidationError reports a domain rule violation that is not tied
// to a single row, such as an empty dataset where rows are required.
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewRowValidationError reports an out-of-domain field value. The row number
// is 1-based over the retained rows of the source table.
func NewRowValidationError(column string, value interface{}, row int) *AppError {
	return NewAppError(ErrTypeValidation,
		fmt.Sprintf("row %d: %s value %v outside its domain", row, column, value), nil).
		WithContext("column", column).
		WithContext("value", value).
		WithContext("row", row)
}

// NewDegenerateError reports quantile binning collapsing below the requested
// bucket count.
func NewDegenerateError(column string, requested, distinct int) *AppError {
	return NewAppError(ErrTypeDegenerate,
		fmt.Sprintf("%s: %d quantile buckets requested but only %d distinct edges", column, requested, distinct), nil).
		WithContext("column", column).
		WithContext("requested", requested).
		WithContext("distinct", distinct)
}

// Attempt records one failed candidate location during loading.
type Attempt struct {
	Location string `json:"location"`
	Reason   string `json:"reason"`
}

// NewUnavailableError reports that every candidate source failed. The
// message lists the locations; the context keeps the per-location reasons.
func NewUnavailableError(attempts []Attempt) *AppError {
	locations := make([]string, len(attempts))
	for i, a := range attempts {
		locations[i] = a.Location
	}
	return NewAppError(ErrTypeUnavailable,
		fmt.Sprintf("no loadable data source among %d candidates: %s",
			len(attempts), strings.Join(locations, ", ")), nil).
		WithContext("attempts", attempts)
}

// NewStorageError wraps a failed read or write under the data tree.
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNotFoundError names the resource a request asked for and missed.
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConflictError reports an operation colliding with one in flight.
func NewConflictError(message string) *AppError {
	return NewAppError(ErrTypeConflict, message, nil)
}
