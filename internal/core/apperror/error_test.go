package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedNotFound(t *testing.T) {
	err := NewPartyNotFound("p-1")

	assert.Equal(t, CodePartyNotFound, err.Code)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "party", err.Details["entity"])
}

func TestIsThroughWrapping(t *testing.T) {
	base := NewInsufficientStock("s-1", 7, 5)
	wrapped := fmt.Errorf("allocate line 2: %w", base)

	assert.True(t, Is(wrapped, CodeInsufficientStock))
	assert.False(t, Is(wrapped, CodeInvalidAmount))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(wrapped))
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	raw := errors.New("disk full")
	n := Normalize(raw)
	assert.Equal(t, CodePersistence, n.Code)
	assert.ErrorIs(t, n, raw)

	typed := NewInvalidAmount("-10")
	assert.Same(t, typed, Normalize(typed))
}
