package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("domain error passes through", func(t *testing.T) {
		err := NewForbidden("access denied")
		mapped := ToDomainError(err)
		assert.Equal(t, "FORBIDDEN", mapped.Code)
		assert.Equal(t, http.StatusForbidden, mapped.HTTPStatus)
	})

	t.Run("wrapped domain error is unwrapped", func(t *testing.T) {
		err := fmt.Errorf("loading ticket: %w", NewNotFound("ticket", nil))
		mapped := ToDomainError(err)
		assert.Equal(t, "NOT_FOUND", mapped.Code)
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		mapped := ToDomainError(fmt.Errorf("query: %w", pgx.ErrNoRows))
		assert.Equal(t, "NOT_FOUND", mapped.Code)
		assert.Equal(t, http.StatusNotFound, mapped.HTTPStatus)
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		mapped := ToDomainError(errors.New("boom"))
		assert.Equal(t, "INTERNAL_ERROR", mapped.Code)
		assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
		assert.Equal(t, "internal server error", mapped.Message, "internals never leak to clients")
	})
}

func TestDomainErrorShape(t *testing.T) {
	err := NewUploadRejected("virus.exe", "file type not allowed")
	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UPLOAD_REJECTED", domainErr.Code)
	assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus)
	assert.Contains(t, domainErr.Message, "virus.exe")
	assert.Equal(t, "virus.exe", domainErr.Details["filename"])

	wrapped := NewInternalError(errors.New("disk full"))
	require.ErrorAs(t, wrapped, &domainErr)
	assert.Contains(t, domainErr.Error(), "disk full")
	assert.EqualError(t, errors.Unwrap(domainErr), "disk full")
}
