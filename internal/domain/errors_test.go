package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("court", "must be between 1 and 6")

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrSlotConflict))
	assert.Equal(t, "court: must be between 1 and 6", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "court", ve.Field)

	wrapped := errors.Join(errors.New("outer"), err)
	assert.True(t, errors.Is(wrapped, ErrValidation))
}

func TestStorageError(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := StorageError("create booking", cause)

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "create booking")
}
