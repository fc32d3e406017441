package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{NotFoundError("missing"), http.StatusNotFound},
		{ConflictError("closed"), http.StatusConflict},
		{UnavailableError("full"), http.StatusServiceUnavailable},
		{InternalError("boom", nil), http.StatusInternalServerError},
		{&Error{Type: "unknown"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "validation: invalid room id", ValidationError("invalid room id").Error())

	cause := errors.New("connection reset")
	assert.Equal(t, "internal: failed to load room: connection reset", InternalError("failed to load room", cause).Error())
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("handler: %w", InternalError("failed", cause))

	assert.ErrorIs(t, err, cause)
}

func TestWithField(t *testing.T) {
	err := NotFoundError("room not found").WithField("room_id", int64(42))

	resp := err.ToResponse()
	assert.Equal(t, "room not found", resp.Error)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Equal(t, int64(42), resp.Context["room_id"])
}

func TestWithField_NilContext(t *testing.T) {
	err := &Error{Type: TypeConflict, Message: "x"}
	err.WithField("k", "v")
	assert.Equal(t, "v", err.Context["k"])
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	structured := ConflictError("room closed")
	wrapped := fmt.Errorf("send stamp: %w", structured)
	assert.Same(t, structured, AsStructuredError(wrapped))

	plain := errors.New("boom")
	converted := AsStructuredError(plain)
	require.NotNil(t, converted)
	assert.Equal(t, TypeInternal, converted.Type)
	assert.ErrorIs(t, converted, plain)
}
