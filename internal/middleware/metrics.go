package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"mirror-proxy-go/internal/metrics"
	"mirror-proxy-go/internal/router"
)

// MetricsMiddleware returns an Echo middleware that records Prometheus metrics
// for each inbound request. The host label is bounded to hostnames present in
// the routing table; anything else is recorded as "other".
func MetricsMiddleware(m *metrics.Metrics, r *router.Router) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()

			err := next(c)

			// Resolve the actual status code. When a handler returns an
			// *echo.HTTPError, the response status hasn't been written yet;
			// Echo's central error handler will do that later. We inspect
			// the error to get the correct code for metrics.
			statusCode := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					statusCode = he.Code
				}
			}

			status := strconv.Itoa(statusCode)
			method := metrics.NormalizeMethod(c.Request().Method)
			host := "other"
			if _, rerr := r.Resolve(c.Request().Host); rerr == nil {
				host = router.NormalizeHostname(c.Request().Host)
			}
			duration := time.Since(start).Seconds()

			m.RequestsTotal.WithLabelValues(method, status, host).Inc()
			m.RequestDuration.WithLabelValues(method, status, host).Observe(duration)

			return err
		}
	}
}
