package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("append: %w", Validation("text must not be empty"))

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, Validation("text must not be empty"))
	assert.NotErrorIs(t, err, Validation("room id is required"))
}

func TestPersistenceKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Persistence(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage failure", err.Message)
	assert.Equal(t, "storage failure: connection refused", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Validation("x").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFound("x").HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, Unauthorized("x").HTTPStatus())
	assert.Equal(t, http.StatusForbidden, Forbidden("x").HTTPStatus())
	assert.Equal(t, http.StatusConflict, Conflict("x", nil).HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Persistence(nil).HTTPStatus())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindForbidden, KindOf(fmt.Errorf("wrap: %w", Forbidden("x"))))
	assert.Equal(t, KindPersistence, KindOf(errors.New("plain")))
}

func TestConflictKeepsCause(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed: users.email")
	err := fmt.Errorf("create user: %w", Conflict("email already registered", cause))

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrPersistence)
	assert.Equal(t, KindConflict, KindOf(err))
}
