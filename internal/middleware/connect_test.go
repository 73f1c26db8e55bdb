package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRejectConnect(t *testing.T) {
	e := echo.New()
	e.Pre(RejectConnect())
	e.Any("/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "proxied")
	})

	req := httptest.NewRequest(http.MethodConnect, "http://shop.local/", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}
	if !strings.Contains(rec.Body.String(), "CONNECT not supported") {
		t.Errorf("body = %q, want CONNECT not supported", rec.Body.String())
	}
}

func TestRejectConnect_PassesOtherMethods(t *testing.T) {
	e := echo.New()
	e.Pre(RejectConnect())
	e.Any("/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "proxied")
	})

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		req := httptest.NewRequest(method, "http://shop.local/x", http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", method, rec.Code)
		}
	}
}
