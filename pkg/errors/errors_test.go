package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error_WithoutInnerError(t *testing.T) {
	err := &Error{Code: Validation, Message: "bad thing"}
	assert.Contains(t, err.Error(), "code VALIDATION")
	assert.Contains(t, err.Error(), "message bad thing")
	assert.NotContains(t, err.Error(), "error ")
}

func TestError_Error_WithInnerError(t *testing.T) {
	inner := errors.New("datastore timeout")
	err := &Error{Code: Internal, Message: "persist failed", InnerError: inner}
	assert.Contains(t, err.Error(), "datastore timeout")
	assert.Contains(t, err.Error(), "code INTERNAL")
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := Wrap(inner, "wrapped")
	assert.Equal(t, errors.Unwrap(err), inner)
}

func TestRetryable(t *testing.T) {
	assert.True(t, NewUnavailable("backend down").Retryable())
	assert.True(t, NewTransientUpstream("ldap flaky", nil).Retryable())
	assert.False(t, NewBadRequest("bad").Retryable())
	assert.False(t, NewInternalError("oops").Retryable())
}

func TestAs(t *testing.T) {
	te, ok := As(NewNotFound("missing"))
	assert.True(t, ok)
	assert.Equal(t, te.Code, NotFound)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
