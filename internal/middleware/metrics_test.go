package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"mirror-proxy-go/internal/metrics"
	"mirror-proxy-go/internal/router"
)

func testRouter(t *testing.T) *router.Router {
	t.Helper()
	route, err := router.ParseTarget("http://127.0.0.1:9000", false)
	if err != nil {
		t.Fatal(err)
	}
	r := router.New()
	r.ReplaceRoutes(map[string]router.Route{"shop.local": route})
	return r
}

// counterValue finds a counter in the registry by name and host label.
func counterValue(t *testing.T, m *metrics.Metrics, name, host string) (float64, bool) {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "host" && lp.GetValue() == host {
					return metric.GetCounter().GetValue(), true
				}
			}
		}
	}
	return 0, false
}

func TestMetricsMiddleware_CountsByHost(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, testRouter(t)))
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "http://shop.local:8080/", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	v, ok := counterValue(t, m, "mirror_proxy_http_requests_total", "shop.local")
	if !ok {
		t.Fatal("expected mirror_proxy_http_requests_total with host=shop.local")
	}
	if v != 1 {
		t.Errorf("counter value = %v, want 1", v)
	}
}

func TestMetricsMiddleware_UnroutedHostIsOther(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, testRouter(t)))
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "http://stranger.example/", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if _, ok := counterValue(t, m, "mirror_proxy_http_requests_total", "other"); !ok {
		t.Error("expected unrouted hostname to be recorded as host=other")
	}
}

func TestMetricsMiddleware_ErrorStatusFromHTTPError(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, testRouter(t)))
	e.GET("/boom", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "nope")
	})

	req := httptest.NewRequest(http.MethodGet, "http://shop.local/boom", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() != "mirror_proxy_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "status_code" && lp.GetValue() == "502" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected status_code=502 label from *echo.HTTPError")
	}
}
