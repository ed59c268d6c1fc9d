package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "bad input")
	assert.Equal(t, "VALIDATION_ERROR: bad input", err.Error())
	assert.Equal(t, CodeValidation, CodeOf(err))
}

func TestNewf(t *testing.T) {
	err := Newf(CodeNotFound, "consent %s not found", "c-1")
	assert.Equal(t, "NOT_FOUND: consent c-1 not found", err.Error())
}

func TestWrap(t *testing.T) {
	t.Run("nil error yields nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, CodeEncryptionFailed, "store"))
	})

	t.Run("preserves cause for errors.Is", func(t *testing.T) {
		cause := errors.New("disk full")
		err := Wrap(cause, CodeEncryptionFailed, "store cohort data")
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "ENCRYPTION_FAILED")
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestCodeOf(t *testing.T) {
	t.Run("direct coded error", func(t *testing.T) {
		assert.Equal(t, CodeTimeout, CodeOf(New(CodeTimeout, "deadline")))
	})

	t.Run("wrapped through fmt", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeMissingConsent, "no active consent"))
		assert.Equal(t, CodeMissingConsent, CodeOf(err))
	})

	t.Run("foreign error reports internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	})
}

func TestHasCode(t *testing.T) {
	t.Run("finds code anywhere in the chain", func(t *testing.T) {
		inner := New(CodeCorruptionDetected, "bad envelope")
		outer := Wrap(inner, CodeAuditLogFailed, "append audit")
		assert.True(t, HasCode(outer, CodeAuditLogFailed))
		assert.True(t, HasCode(outer, CodeCorruptionDetected))
		assert.False(t, HasCode(outer, CodeValidation))
	})

	t.Run("nil and foreign errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeInternal))
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}
