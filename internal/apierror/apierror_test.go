package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jerry-enebeli/faxline/internal/apierror"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "Some internal error details"
	apiErr := apierror.NewAPIError(apierror.ErrInternalServer, "Something went wrong", details)

	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
	assert.Equal(t, "Something went wrong", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Something went wrong", apiErr.Error())
}

func TestCodeOf_Wrapped(t *testing.T) {
	inner := apierror.NewAPIError(apierror.ErrAlreadyTerminal, "job is delivered", nil)
	wrapped := fmt.Errorf("retry: %w", inner)

	assert.Equal(t, apierror.ErrAlreadyTerminal, apierror.CodeOf(wrapped))
	assert.True(t, apierror.Is(wrapped, apierror.ErrAlreadyTerminal))
	assert.False(t, apierror.Is(nil, apierror.ErrAlreadyTerminal))
	assert.Equal(t, apierror.ErrorCode(""), apierror.CodeOf(errors.New("plain")))
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "NotFound Error",
			err:      apierror.NewAPIError(apierror.ErrNotFound, "Resource not found", nil),
			expected: http.StatusNotFound,
		},
		{
			name:     "Validation Error",
			err:      apierror.NewAPIError(apierror.ErrValidation, "page_count: must be no less than 1", nil),
			expected: http.StatusBadRequest,
		},
		{
			name:     "AlreadyTerminal Error",
			err:      apierror.NewAPIError(apierror.ErrAlreadyTerminal, "job is delivered", nil),
			expected: http.StatusConflict,
		},
		{
			name:     "NotCancellable Error",
			err:      apierror.NewAPIError(apierror.ErrNotCancellable, "job is sending", nil),
			expected: http.StatusConflict,
		},
		{
			name:     "PermanentFailure Error",
			err:      apierror.NewAPIError(apierror.ErrPermanentFailure, "retries exhausted", nil),
			expected: http.StatusUnprocessableEntity,
		},
		{
			name:     "RateLimited Error",
			err:      apierror.NewAPIError(apierror.ErrRateLimited, "slow down", nil),
			expected: http.StatusTooManyRequests,
		},
		{
			name:     "Transport Error",
			err:      apierror.NewAPIError(apierror.ErrTransport, "carrier unavailable", nil),
			expected: http.StatusBadGateway,
		},
		{
			name:     "Unknown Error",
			err:      errors.New("Unknown error"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statusCode := apierror.MapErrorToHTTPStatus(tt.err)
			assert.Equal(t, tt.expected, statusCode)
		})
	}
}
