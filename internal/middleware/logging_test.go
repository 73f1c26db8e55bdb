package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "http://shop.local:8080/test", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	out := buf.String()
	if !strings.Contains(out, "host=shop.local:8080") {
		t.Errorf("log line missing host field: %q", out)
	}
	if !strings.Contains(out, "path=/test") {
		t.Errorf("log line missing path field: %q", out)
	}
	if !strings.Contains(out, "status=200") {
		t.Errorf("log line missing status field: %q", out)
	}
}
