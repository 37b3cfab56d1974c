package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Creation(t *testing.T) {
	cause := errors.New("underlying error")

	err := NewValidationError("test validation error", cause)

	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "test validation error", err.Message)
	assert.Equal(t, cause, err.Cause)
	assert.NotNil(t, err.Context)
}

func TestDomainError_WithContext(t *testing.T) {
	err := NewSpawnError("test error", nil)

	err = err.WithContext("unit_name", "device-info")
	err = err.WithContext("pid", 12345)

	assert.Equal(t, "device-info", err.Context["unit_name"])
	assert.Equal(t, 12345, err.Context["pid"])
}

func TestDomainError_ErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		error    *DomainError
		expected string
	}{
		{
			name:     "error without cause",
			error:    NewValidationError("test message", nil),
			expected: "validation: test message",
		},
		{
			name:     "error with cause",
			error:    NewExitError("test message", errors.New("cause")),
			expected: "exit: test message: cause",
		},
		{
			name:     "ordering error",
			error:    NewOrderingError("waiting for dependency", nil),
			expected: "ordering: waiting for dependency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.error.Error())
		})
	}
}

func TestDomainError_TypeChecking(t *testing.T) {
	orderingErr := NewOrderingError("ordering error", nil)
	spawnErr := NewSpawnError("spawn error", nil)
	exitErr := NewExitError("exit error", nil)
	ioErr := NewIOError("io error", nil)

	assert.True(t, IsOrderingError(orderingErr))
	assert.False(t, IsOrderingError(spawnErr))

	assert.True(t, IsSpawnError(spawnErr))
	assert.False(t, IsSpawnError(exitErr))

	assert.True(t, IsExitError(exitErr))
	assert.True(t, IsIOError(ioErr))
	assert.False(t, IsIOError(exitErr))
}

func TestDomainError_TypeCheckingWrapped(t *testing.T) {
	inner := NewConflictError("unit already registered", nil)
	wrapped := fmt.Errorf("register failed: %w", inner)

	assert.True(t, IsConflictError(wrapped))
	assert.False(t, IsNotFoundError(wrapped))
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewInternalError("wrapper", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestErrorCollection(t *testing.T) {
	t.Run("empty_collection", func(t *testing.T) {
		collection := NewErrorCollection()

		assert.False(t, collection.HasErrors())
		assert.NoError(t, collection.ToError())
		assert.Equal(t, "no errors", collection.Error())
	})

	t.Run("single_error", func(t *testing.T) {
		collection := NewErrorCollection()
		collection.Add(NewExitError("unit exited with code 1", nil))

		require.True(t, collection.HasErrors())
		assert.Equal(t, "exit: unit exited with code 1", collection.Error())
	})

	t.Run("nil_errors_ignored", func(t *testing.T) {
		collection := NewErrorCollection()
		collection.Add(nil)
		collection.Add(nil)

		assert.False(t, collection.HasErrors())
	})

	t.Run("multiple_errors", func(t *testing.T) {
		collection := NewErrorCollection()
		collection.Add(NewExitError("first", nil))
		collection.Add(NewIOError("second", nil))

		require.True(t, collection.HasErrors())
		assert.Len(t, collection.Errors, 2)
		assert.Contains(t, collection.Error(), "2 errors occurred")
	})
}
