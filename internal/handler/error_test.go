package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuilabs/minami/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestErrorResponse_InternalDoesNotExposeDetails(t *testing.T) {
	dbErr := errors.New(`pq: duplicate key value violates unique constraint "chat_usage_pkey"`)
	err := domain.Internal(dbErr, "Store.GetUsage", "usage lookup failed")

	for _, accept := range []string{"text/plain", "application/json"} {
		t.Run(accept, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/s/abc", nil)
			req.Header.Set("Accept", accept)
			rec := httptest.NewRecorder()

			ErrorResponse(rec, req, discardLogger(), err)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := rec.Body.String()
			assert.NotContains(t, body, "pq:")
			assert.NotContains(t, body, "chat_usage_pkey")
			assert.NotContains(t, body, "Store.GetUsage")
			assert.NotContains(t, body, "usage lookup failed")
			assert.Contains(t, body, "Please try again later")
		})
	}
}

func TestErrorResponse_JSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/s/zzz", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, discardLogger(), domain.NotFound("checkout.resolve", "checkout link", "zzz"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body JSONError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, domain.ENOTFOUND, body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
}

func TestErrorResponse_PlainErrorIsInternal(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", nil)
	rec := httptest.NewRecorder()

	InternalErrorResponse(rec, req, discardLogger(), errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.ENOTIMPL, http.StatusNotImplemented},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something_else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestNotFoundResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()

	NotFoundResponse(rec, req, discardLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
