package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationError_Is(t *testing.T) {
	req := require.New(t)
	err := fmt.Errorf("add message: %w", NewValidationError("text", "too long"))

	req.ErrorIs(err, ErrValidation)
	req.NotErrorIs(err, ErrStorage)

	var ve *ValidationError
	req.True(errors.As(err, &ve))
	req.Equal("text", ve.Field)
	req.Equal("validation failed: text: too long", ve.Error())
}

func TestStorageError_UnwrapsCause(t *testing.T) {
	req := require.New(t)
	cause := errors.New("throttled")
	err := NewStorageError("PutItem", "mbl2pc-messages", cause)

	req.ErrorIs(err, ErrStorage)
	req.ErrorIs(err, cause)
	req.Contains(err.Error(), "PutItem")
	req.Contains(err.Error(), "mbl2pc-messages")
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"conflict wins over storage", NewStorageError("PutItem", "t", ErrConflict), "conflict"},
		{"storage", NewStorageError("Query", "t", errors.New("boom")), "storage_error"},
		{"validation", NewValidationError("", "empty payload"), "validation_error"},
		{"unauthenticated", fmt.Errorf("session: %w", ErrUnauthenticated), "unauthenticated"},
		{"other", errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Code(tt.err))
		})
	}
}
