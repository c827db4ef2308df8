package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragfer/spot95/internal/adapter/metrics"
	apperrors "github.com/dragfer/spot95/internal/platform/errors"
)

const testRemoteAddr = "1.2.3.4:1234"

func limitedRequest(t *testing.T, e *echo.Echo, handler echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ws/x", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	e := echo.New()
	handler := newRateLimiter(10, 3, nil)(okHandler)

	for range 3 {
		rec := limitedRequest(t, e, handler, testRemoteAddr)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	e := echo.New()
	m := metrics.NewConnectionMetrics(prometheus.NewRegistry())
	handler := newRateLimiter(0.01, 1, m)(okHandler)

	rec := limitedRequest(t, e, handler, testRemoteAddr)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = limitedRequest(t, e, handler, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp.Error)
	assert.Equal(t, apperrors.TypeRateLimited, resp.Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues("rate_limit")))
}

func TestRateLimiterDifferentIPsAreIndependent(t *testing.T) {
	e := echo.New()
	handler := newRateLimiter(0.01, 1, nil)(okHandler)

	assert.Equal(t, http.StatusOK, limitedRequest(t, e, handler, "1.1.1.1:1").Code)
	assert.Equal(t, http.StatusOK, limitedRequest(t, e, handler, "2.2.2.2:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(t, e, handler, "1.1.1.1:2").Code)
}
