package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrInference, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true)

	assert.Equal(t, ErrInference, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, root))
	assert.NotEmpty(t, err.Error())
	assert.True(t, IsCode(err, ErrInference))
	assert.False(t, IsCode(err, ErrValidation))
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("text must not be empty")
	assert.Equal(t, ErrValidation, err.Code)
	assert.False(t, err.Retryable)
}
