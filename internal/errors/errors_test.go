package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrTypeValidation, "test error message")

	assert.Equal(t, ErrTypeValidation, err.Type)
	assert.Equal(t, "test error message", err.Message)
	assert.NoError(t, err.Cause)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrTypeDatabase, "failed to connect to %s", "database")

	assert.Equal(t, ErrTypeDatabase, err.Type)
	assert.Equal(t, "failed to connect to database", err.Message)
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(originalErr, ErrTypeExecution, "statement failed")

	assert.Equal(t, ErrTypeExecution, wrappedErr.Type)
	assert.Equal(t, "statement failed", wrappedErr.Message)
	assert.Equal(t, originalErr, wrappedErr.Cause)
	assert.ErrorIs(t, wrappedErr, originalErr)
}

func TestWrapf(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrapf(originalErr, ErrTypeSession, "failed to load turns for %s", "c-1")

	assert.Equal(t, ErrTypeSession, wrappedErr.Type)
	assert.Equal(t, "failed to load turns for c-1", wrappedErr.Message)
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "error without cause",
			err:      &Error{Type: ErrTypeValidation, Message: "invalid input"},
			expected: "validation: invalid input",
		},
		{
			name: "error with cause",
			err: &Error{
				Type:    ErrTypeDatabase,
				Message: "query failed",
				Cause:   errors.New("connection timeout"),
			},
			expected: "database: query failed: connection timeout",
		},
		{
			name:     "policy violation",
			err:      New(ErrTypePolicyViolation, "table not allowed"),
			expected: "policy_violation: table not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestIsTypeAndGetType(t *testing.T) {
	inner := New(ErrTypeSession, "store closed")
	wrapped := fmt.Errorf("load turns: %w", inner)

	assert.True(t, IsType(wrapped, ErrTypeSession))
	assert.False(t, IsType(wrapped, ErrTypePolicyViolation))
	assert.Equal(t, ErrTypeSession, GetType(wrapped))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.False(t, IsType(nil, ErrTypeInternal))
}

func TestSuggestions(t *testing.T) {
	inner := New(ErrTypeConfig, "bad level").WithSuggestion("use info")
	outer := Wrap(inner, ErrTypeConfig, "load failed").WithSuggestion("check the file")

	assert.Equal(t, []string{"check the file", "use info"}, Suggestions(outer))
	assert.Empty(t, Suggestions(errors.New("plain")))
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("must be positive", "limits.max_rows")

	assert.Equal(t, ErrTypeConfig, err.Type)
	assert.Equal(t, "must be positive (field: limits.max_rows)", err.Message)
	assert.Len(t, err.Suggestions, 2)
}
