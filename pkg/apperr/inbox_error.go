package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Validation errors
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeBadRequest       = "BAD_REQUEST"

	// Resource errors
	CodeNotFound = "NOT_FOUND"
	CodeBusy     = "BUSY"

	// Store / pipeline / agent errors
	CodeStoreError     = "STORE_ERROR"
	CodePipelineFailed = "PIPELINE_FAILED"
	CodeAgentFailed    = "AGENT_FAILED"

	// Internal errors
	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// Validation errors
func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// ValidationFailed reports model output or user input that violates the record schema.
func ValidationFailed(message string) *AppError {
	return &AppError{
		Code:    CodeValidationFailed,
		Message: message,
		Status:  http.StatusUnprocessableEntity,
	}
}

func InvalidInput(field, reason string) *AppError {
	return &AppError{
		Code:    CodeValidationFailed,
		Message: fmt.Sprintf("invalid value for '%s': %s", field, reason),
		Status:  http.StatusUnprocessableEntity,
		Details: map[string]any{"field": field},
	}
}

func MissingField(field string) *AppError {
	return &AppError{
		Code:    CodeValidationFailed,
		Message: fmt.Sprintf("missing required field: %s", field),
		Status:  http.StatusUnprocessableEntity,
		Details: map[string]any{"field": field},
	}
}

// Resource errors
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// Busy reports that an exclusive resource is held by another writer.
func Busy(resource string) *AppError {
	return &AppError{
		Code:    CodeBusy,
		Message: fmt.Sprintf("%s is locked by another run", resource),
		Status:  http.StatusConflict,
	}
}

// StoreFailed wraps an I/O or parse failure on a persisted document.
func StoreFailed(operation, path string, err error) *AppError {
	return &AppError{
		Code:    CodeStoreError,
		Message: fmt.Sprintf("store error: %s %s", operation, path),
		Status:  http.StatusInternalServerError,
		Details: map[string]any{"operation": operation, "path": path},
		Err:     err,
	}
}

// PipelineFailed reports the first email that broke an enrichment run.
func PipelineFailed(index int, messageID string, err error) *AppError {
	return &AppError{
		Code:    CodePipelineFailed,
		Message: fmt.Sprintf("enrichment failed at email %d (%s)", index, messageID),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"index": index, "message_id": messageID},
		Err:     err,
	}
}

// AgentFailed wraps a model failure during a conversation turn.
func AgentFailed(err error) *AppError {
	return &AppError{
		Code:    CodeAgentFailed,
		Message: "agent turn failed",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

// Internal errors
func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ConfigError(message string) *AppError {
	return &AppError{
		Code:    CodeConfigError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// IsCode reports whether err (or anything it wraps) is an AppError with the given code.
// The outermost AppError in the chain is not the only one checked, so a
// ValidationError wrapped inside a PipelineError still matches CodeValidationFailed.
func IsCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

