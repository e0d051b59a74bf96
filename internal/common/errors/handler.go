// internal/common/errors/handler.go
package errors

import (
	"context"
	"errors"
	"time"
)

// ErrorHandler normalizes and logs errors at the outermost request boundary.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleRequestError converts err into a StandardError and logs it. Expected request
// errors (validation, duplicates, denials) are logged at warn, everything else at error.
func (h *ErrorHandler) HandleRequestError(operation string, err error) *StandardError {
	if err == nil {
		return nil
	}
	stdErr := h.normalizeError(err)
	h.logError(operation, stdErr)
	return stdErr
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewPersistenceError("timeout", err)
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func (h *ErrorHandler) logError(operation string, stdErr *StandardError) {
	fields := map[string]interface{}{
		"operation":     operation,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       GetRetryCount(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		if _, exists := fields[k]; !exists {
			fields[k] = v
		}
	}

	switch GetErrorCategory(stdErr.Code) {
	case "REQUEST", "AUTH", "LOOKUP":
		h.logger.Warn("Request rejected", fields)
	default:
		h.logger.Error("Request failed", fields)
	}
}
