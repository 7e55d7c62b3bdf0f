package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "failed to load loan ledger")

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, HasCode(err, CodeInternal))
}

func TestIsMatchesOutermostCode(t *testing.T) {
	inner := New(CodeNotFound, "book not found")
	outer := Wrap(inner, CodeInternal, "borrow failed")

	// The outermost code wins; services re-code deliberately when wrapping.
	assert.True(t, Is(outer, CodeInternal))
	assert.False(t, Is(outer, CodeNotFound))
}

func TestIsRejectsUntypedErrors(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), CodeInternal))
	assert.False(t, Is(nil, CodeInternal))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "book is not available")))
	assert.Equal(t, CodeForbidden, CodeOf(fmt.Errorf("handler: %w", New(CodeForbidden, "nope"))))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodeBadRequest:         http.StatusBadRequest,
		CodeInvalidInput:       http.StatusBadRequest,
		CodeValidation:         http.StatusBadRequest,
		CodeTimeout:            http.StatusGatewayTimeout,
		CodeInvariantViolation: http.StatusInternalServerError,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
