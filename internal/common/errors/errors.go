// Package errors provides the standardized error taxonomy of the application workflow.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeDuplicateApplication ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeAuthorizationDenied  ErrorCode = "AUTHORIZATION_DENIED"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	ErrCodeResourceFailed       ErrorCode = "RESOURCE_FAILED"
	ErrCodePersistenceFailed    ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any StandardError carrying the same code, so the package sentinels work
// with errors.Is regardless of message or details.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is.
var (
	ErrValidation        = &StandardError{Code: ErrCodeValidationFailed}
	ErrDuplicate         = &StandardError{Code: ErrCodeDuplicateApplication}
	ErrAuthorization     = &StandardError{Code: ErrCodeAuthorizationDenied}
	ErrNotFound          = &StandardError{Code: ErrCodeNotFound}
	ErrInvalidTransition = &StandardError{Code: ErrCodeInvalidTransition}
	ErrResource          = &StandardError{Code: ErrCodeResourceFailed}
	ErrPersistence       = &StandardError{Code: ErrCodePersistenceFailed}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable intake validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFieldValidationError creates a validation error listing the offending fields.
func NewFieldValidationError(fields map[string]string) *StandardError {
	parts := make([]string, 0, len(fields))
	for field, msg := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	err := NewValidationError(strings.Join(parts, "; "))
	for field, msg := range fields {
		err.WithMetadata(field, msg)
	}
	return err
}

// NewDuplicateApplicationError creates a non-retryable duplicate application error.
func NewDuplicateApplicationError(submitterID, existingID string) *StandardError {
	details := fmt.Sprintf("submitterId: %s", submitterID)
	if existingID != "" {
		details = fmt.Sprintf("submitterId: %s, pendingApplicationId: %s", submitterID, existingID)
	}
	return &StandardError{
		Code:      ErrCodeDuplicateApplication,
		Message:   "Submitter already has a pending application",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthorizationError creates a non-retryable denial for an actor lacking a capability.
func NewAuthorizationError(actorID, capability string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthorizationDenied,
		Message:   "Actor lacks the required capability",
		Details:   fmt.Sprintf("actorId: %s, capability: %s", actorID, capability),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable not found error.
func NewNotFoundError(kind, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", kind),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError creates a non-retryable error for a decision on a resolved record.
func NewInvalidTransitionError(applicationID string, current string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Application is not pending",
		Details:   fmt.Sprintf("applicationId: %s, status: %s", applicationID, current),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResourceError wraps a platform-side failure to create or delete a resource.
func NewResourceError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceFailed,
		Message:   fmt.Sprintf("Platform operation '%s' failed", operation),
		Details:   errDetails(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewPersistenceError creates a retryable store error.
func NewPersistenceError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailed,
		Message:   fmt.Sprintf("Store operation '%s' failed", operation),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   errDetails(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError extracts the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of err, or INTERNAL_ERROR for errors outside the taxonomy.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistenceFailed:
		return 3
	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed, ErrCodeDuplicateApplication, ErrCodeInvalidTransition:
		return "REQUEST"
	case ErrCodeAuthorizationDenied:
		return "AUTH"
	case ErrCodeNotFound:
		return "LOOKUP"
	case ErrCodeResourceFailed:
		return "PLATFORM"
	case ErrCodePersistenceFailed:
		return "DATABASE"
	default:
		return "OTHER"
	}
}

// UserMessage is the text shown to the actor for each code. Unexpected failures get a
// generic message so internals never leak.
func UserMessage(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed:
		return "Some fields are missing or too long."
	case ErrCodeDuplicateApplication:
		return "You already have an application under review. You cannot submit a new one until it is resolved."
	case ErrCodeAuthorizationDenied:
		return "You do not have permission for this action."
	case ErrCodeNotFound:
		return "The application or space was not found."
	case ErrCodeInvalidTransition:
		return "This application has already been resolved."
	case ErrCodeResourceFailed:
		return "The platform rejected the operation. Operators have been informed."
	default:
		return "Something went wrong. Please try again later."
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
