package server

import (
	"net/http"
	"strings"

	apperrors "membership-workflow/internal/common/errors"

	"github.com/danielgtaylor/huma/v2"
)

const codeUnauthenticated = "UNAUTHENTICATED"

type apiErrorBody struct {
	Code    string         `json:"code" example:"DUPLICATE_APPLICATION"`
	Message string         `json:"message" example:"You already have an application under review."`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the error envelope of every failed request.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// installErrorEnvelope makes huma's own errors use the envelope. Schema violations
// are reported as validation failures.
func installErrorEnvelope() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, errorDetails(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg, errorDetails(errs))
	}
}

func errorDetails(errs []error) map[string]any {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return map[string]any{"errors": msgs}
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeAuthorizationDenied:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeDuplicateApplication, apperrors.ErrCodeInvalidTransition:
		return http.StatusConflict
	case apperrors.ErrCodeResourceFailed:
		return http.StatusBadGateway
	case apperrors.ErrCodePersistenceFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(apperrors.ErrCodeValidationFailed)
	case http.StatusUnauthorized:
		return codeUnauthenticated
	case http.StatusForbidden:
		return string(apperrors.ErrCodeAuthorizationDenied)
	case http.StatusNotFound:
		return string(apperrors.ErrCodeNotFound)
	case http.StatusInternalServerError:
		return string(apperrors.ErrCodeInternal)
	default:
		return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// handleError is the outermost boundary: it logs err once and converts it into the
// envelope. Unexpected errors get a generic message.
func (s *server) handleError(operation string, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	stdErr := s.errors.HandleRequestError(operation, err)

	var details map[string]any
	if stdErr.Code != apperrors.ErrCodeInternal {
		details = make(map[string]any, len(stdErr.Metadata)+1)
		for k, v := range stdErr.Metadata {
			details[k] = v
		}
		if stdErr.Details != "" {
			details["reason"] = stdErr.Details
		}
		if len(details) == 0 {
			details = nil
		}
	}
	return newAPIError(statusFor(stdErr.Code), string(stdErr.Code), apperrors.UserMessage(stdErr.Code), details)
}
