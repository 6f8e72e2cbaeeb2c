package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Is(t *testing.T) {
	cases := []struct {
		status int
		target error
	}{
		{401, ErrUnauthorized},
		{403, ErrUnauthorized},
		{404, ErrNotFound},
		{409, ErrConflict},
		{400, ErrInvalidInput},
		{502, ErrUnavailable},
	}
	for _, tc := range cases {
		err := fmt.Errorf("wrapped: %w", &APIError{Status: tc.status})
		assert.True(t, errors.Is(err, tc.target), "status %d", tc.status)
	}
	assert.False(t, errors.Is(&APIError{Status: 404}, ErrConflict))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "Out of stock", Reason(&APIError{Status: 400, Reason: "Out of stock"}))
	assert.Equal(t, ErrSessionExpired.Error(), Reason(fmt.Errorf("x: %w", ErrSessionExpired)))
	assert.Equal(t, "Service is temporarily unavailable", Reason(&APIError{Status: 503}))
	assert.Equal(t, "Something went wrong", Reason(errors.New("boom")))
}
