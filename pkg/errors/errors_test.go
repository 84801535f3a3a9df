package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		unrecoverable bool
	}{
		{name: "not found", err: ErrNotFound, unrecoverable: true},
		{name: "validation", err: ErrValidation, unrecoverable: true},
		{name: "decode", err: ErrDecode, unrecoverable: true},
		{name: "no credentials", err: ErrNoCredentials, unrecoverable: true},
		{name: "timeout", err: ErrTimeout, unrecoverable: false},
		{name: "service unavailable", err: ErrServiceUnavailable, unrecoverable: false},
		{name: "internal", err: ErrInternal, unrecoverable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unrecoverable, IsUnrecoverable(tt.err))
			assert.Equal(t, tt.unrecoverable, tt.err.IsFatal())
			assert.Equal(t, !tt.unrecoverable, tt.err.IsRetryable())
		})
	}
}

func TestIsUnrecoverableDefaults(t *testing.T) {
	assert.False(t, IsUnrecoverable(nil))
	assert.False(t, IsUnrecoverable(errors.New("plain error")), "unknown errors default to recoverable")
}

func TestIsUnrecoverableThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("stage failed: %w", ErrNotFound)
	assert.True(t, IsUnrecoverable(wrapped))
}

func TestRecoverPanic(t *testing.T) {
	assert.NoError(t, RecoverPanic(nil))

	t.Run("error value", func(t *testing.T) {
		err := RecoverPanic(errors.New("boom"))
		assert.True(t, IsUnrecoverable(err), "a panic must never be retried")
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("non-error value", func(t *testing.T) {
		err := RecoverPanic("boom")
		assert.True(t, IsUnrecoverable(err))
		assert.ErrorContains(t, err, "panic: boom")
	})
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	detailed := ErrValidation.WithDetail("message", "bad field")

	assert.Contains(t, detailed.Error(), "bad field")
	assert.NotContains(t, ErrValidation.Error(), "bad field")
}

func TestAsRetryableOverridesCode(t *testing.T) {
	overridden := ErrNotFound.AsRetryable()
	assert.False(t, IsUnrecoverable(overridden))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(ErrValidation))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(errors.New("plain")))
}

func TestToErrorResponse(t *testing.T) {
	response := ToErrorResponse(ErrValidation.WithDetail("message", "bad field"))

	assert.Equal(t, "VALIDATION_ERROR", response["error_code"])
	details, ok := response["details"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "bad field", details["message"])
}
