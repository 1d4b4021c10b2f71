package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := NotFound("template", nil)
	wrapped := Wrapf(base, "load study %s", "s1")

	assert.Equal(t, CodeNotFound, GetCode(wrapped))
	assert.Equal(t, "load study s1: template not found", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrapPlainError(t *testing.T) {
	cause := stderrors.New("connection refused")
	wrapped := Wrap(cause, "ping")

	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Equal(t, "UNKNOWN", GetCode(cause))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("result", nil)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidInput("bad body")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ValidationError("bad result", stderrors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(DatabaseError("insert", stderrors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("plain")))
}

func TestConstructorsKeepCause(t *testing.T) {
	sentinel := stderrors.New("resource not found")

	notFound := NotFound("enriched result", sentinel)
	assert.Equal(t, CodeNotFound, notFound.Code)
	assert.ErrorIs(t, notFound, sentinel)
	assert.Equal(t, "enriched result not found: resource not found", notFound.Error())

	invalid := ValidationError("invalid result", sentinel)
	assert.Equal(t, CodeValidationError, GetCode(Wrap(invalid, "save")))
	assert.ErrorIs(t, invalid, sentinel)
}
