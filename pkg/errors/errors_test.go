package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, ErrInternal.Message, appErr.Message)
}

func TestCloneMatchesOriginal(t *testing.T) {
	clone := Clone(ErrValidation, "Missing endpoint")
	assert.Equal(t, "Missing endpoint", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.True(t, errors.Is(clone, ErrValidation))
	assert.False(t, errors.Is(clone, ErrMalformedRequest))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	wrapped := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed to save subscription")
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "connection refused")
}
