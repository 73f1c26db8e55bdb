package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance. The
// catch-all proxies everything except the reserved admin paths, which
// shadow the upstream.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	e.Any("/", proxy.Handle)
	e.Any("/*", proxy.Handle)
}
