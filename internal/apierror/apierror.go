package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrConflict         ErrorCode = "CONFLICT"
	ErrValidation       ErrorCode = "VALIDATION"
	ErrTransport        ErrorCode = "TRANSPORT"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrPermanentFailure ErrorCode = "PERMANENT_FAILURE"
	ErrAlreadyTerminal  ErrorCode = "ALREADY_TERMINAL"
	ErrNotRetryable     ErrorCode = "NOT_RETRYABLE"
	ErrNotCancellable   ErrorCode = "NOT_CANCELLABLE"
	ErrDispatchInFlight ErrorCode = "DISPATCH_IN_FLIGHT"
	ErrInternalServer   ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.WithField("code", code).Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf extracts the error code from err, or "" when err is not an APIError.
func CodeOf(err error) ErrorCode {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func MapErrorToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict, ErrAlreadyTerminal, ErrNotRetryable, ErrNotCancellable, ErrDispatchInFlight:
		return http.StatusConflict
	case ErrValidation:
		return http.StatusBadRequest
	case ErrPermanentFailure:
		return http.StatusUnprocessableEntity
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
