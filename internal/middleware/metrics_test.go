package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"

	"shop-proxy/internal/metrics"
)

// findSamples returns every sample of the named metric family.
func findSamples(t *testing.T, m *metrics.Metrics, name string) []*dto.Metric {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()
		}
	}
	return nil
}

func labelsOf(metric *dto.Metric) map[string]string {
	labels := make(map[string]string)
	for _, lp := range metric.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

func TestMetricsMiddleware_IncrementsCounter(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/shop/me", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/shop/me", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	found := false
	for _, metric := range findSamples(t, m, "shop_proxy_http_requests_total") {
		labels := labelsOf(metric)
		if labels["route"] == "/api/shop/me" && labels["status_code"] == "200" {
			found = true
			if v := metric.GetCounter().GetValue(); v != 1 {
				t.Errorf("counter value = %v, want 1", v)
			}
		}
	}
	if !found {
		t.Error("expected shop_proxy_http_requests_total with route=/api/shop/me")
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	found := false
	for _, metric := range findSamples(t, m, "shop_proxy_http_request_duration_seconds") {
		if metric.GetHistogram().GetSampleCount() > 0 {
			found = true
		}
	}
	if !found {
		t.Error("expected shop_proxy_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/shop/me", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "slow down")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/shop/me", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	for _, metric := range findSamples(t, m, "shop_proxy_http_requests_total") {
		labels := labelsOf(metric)
		if labels["route"] == "/api/shop/me" {
			if labels["status_code"] != "429" {
				t.Errorf("status_code = %q, want %q", labels["status_code"], "429")
			}
			return
		}
	}
	t.Error("expected shop_proxy_http_requests_total with route=/api/shop/me")
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/api/shop/me", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("XYZZY", "/api/shop/me", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	for _, metric := range findSamples(t, m, "shop_proxy_http_requests_total") {
		labels := labelsOf(metric)
		if labels["route"] == "/api/shop/me" {
			if labels["method"] != "other" {
				t.Errorf("method = %q, want %q", labels["method"], "other")
			}
			return
		}
	}
	t.Error("expected shop_proxy_http_requests_total with route=/api/shop/me and method=other")
}

func TestMetricsMiddleware_RouterNotFound(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))

	req := httptest.NewRequest(http.MethodGet, "/nonexistent/1234", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	for _, metric := range findSamples(t, m, "shop_proxy_http_requests_total") {
		labels := labelsOf(metric)
		if labels["method"] == "GET" && labels["status_code"] == "404" {
			if labels["route"] != "other" {
				t.Errorf("route = %q, want %q", labels["route"], "other")
			}
			return
		}
	}
	t.Error("expected shop_proxy_http_requests_total with method=GET, status_code=404")
}
