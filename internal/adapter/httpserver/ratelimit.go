package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/dragfer/spot95/internal/adapter/metrics"
	apperrors "github.com/dragfer/spot95/internal/platform/errors"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter throttles new connection attempts per client IP. m may be nil.
func newRateLimiter(ratePerSecond float64, burst int, m *metrics.ConnectionMetrics) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if m != nil {
				m.Rejected.WithLabelValues(string(LimitReasonRate)).Inc()
			}
			return HandleError(c, apperrors.RateLimitedError("rate limit exceeded").WithContext("ip", identifier))
		},
	})
}
