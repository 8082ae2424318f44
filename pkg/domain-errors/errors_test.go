package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct error", func(t *testing.T) {
		err := New(CodeNotFound, "missing")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("wrapped cause", func(t *testing.T) {
		cause := errors.New("driver went away")
		err := Wrap(cause, CodeInternal, "lookup failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeForbidden, "no"))
		assert.True(t, HasCode(err, CodeForbidden))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestWrap_NilPassthrough(t *testing.T) {
	require.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeExpired, CodeOf(New(CodeExpired, "too late")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("uncoded")))
}

func TestErrorString(t *testing.T) {
	err := Wrap(errors.New("boom"), CodeValidation, "bad field")
	assert.Equal(t, "validation: bad field: boom", err.Error())
}
