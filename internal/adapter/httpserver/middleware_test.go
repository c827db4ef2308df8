package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragfer/spot95/internal/domain"
	"github.com/dragfer/spot95/internal/platform/correlation"
	apperrors "github.com/dragfer/spot95/internal/platform/errors"
)

func runMiddleware(t *testing.T, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := ErrorHandlingMiddleware()(handler)(c)
	return rec, err
}

func TestErrorHandlingMiddleware_StructuredError(t *testing.T) {
	rec, err := runMiddleware(t, func(c echo.Context) error {
		return apperrors.ValidationError("invalid user id").WithContext("user_id", "nope")
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid user id", resp.Error)
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
	assert.Equal(t, "nope", resp.Context["user_id"])
}

func TestErrorHandlingMiddleware_StandardError(t *testing.T) {
	rec, err := runMiddleware(t, func(c echo.Context) error {
		return errors.New("standard error")
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Error)
	assert.NotContains(t, rec.Body.String(), "standard error")
}

func TestErrorHandlingMiddleware_DomainError(t *testing.T) {
	rec, err := runMiddleware(t, func(c echo.Context) error {
		return fmt.Errorf("load: %w", domain.ErrUserNotFound)
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorHandlingMiddleware_NoError(t *testing.T) {
	rec, err := runMiddleware(t, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestErrorHandlingMiddleware_PassesEchoHTTPError(t *testing.T) {
	_, err := runMiddleware(t, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	})

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestErrorHandlingMiddleware_StatusPerType(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", apperrors.ValidationError("bad"), http.StatusBadRequest},
		{"not found", apperrors.NotFoundError("missing"), http.StatusNotFound},
		{"rate limited", apperrors.RateLimitedError("slow"), http.StatusTooManyRequests},
		{"unavailable", apperrors.UnavailableError("full", nil), http.StatusServiceUnavailable},
		{"external", apperrors.ExternalError("spotify", errors.New("502")), http.StatusBadGateway},
		{"internal", apperrors.InternalError("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := runMiddleware(t, func(c echo.Context) error { return tt.err })
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandleError_Nil(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, HandleError(c, nil))
	assert.False(t, c.Response().Committed)
}

func TestCorrelationMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(correlation.Header, "inbound-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	err := correlationMiddleware(func(c echo.Context) error {
		seen, _ = correlation.ID(c.Request().Context())
		return nil
	})(c)

	require.NoError(t, err)
	assert.Equal(t, "inbound-1", seen)
	assert.Equal(t, "inbound-1", rec.Header().Get(correlation.Header))
}
