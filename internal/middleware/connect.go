package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RejectConnect returns a pre-routing middleware that answers every CONNECT
// request with 501. Tunnel and TLS-passthrough are unsupported; rejecting
// before routing keeps the answer independent of the routing table.
func RejectConnect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodConnect {
				return c.String(http.StatusNotImplemented, "CONNECT not supported")
			}
			return next(c)
		}
	}
}
