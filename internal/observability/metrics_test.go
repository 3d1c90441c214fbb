package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hr/meridian-hr/internal/observability"
)

func TestMiddlewareRecordsRequest(t *testing.T) {
	metrics := observability.NewMetrics()

	router := chi.NewRouter()
	router.Use(metrics.Middleware)
	router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `meridian_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `meridian_http_request_duration_seconds_count{route="/test"} 1`)
}

func TestRecordJob(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.RecordJob("email:decision", "ok")
	metrics.RecordJob("email:decision", "ok")
	metrics.RecordJob("roles:sweep", "error")

	body := scrape(t, metrics)
	require.Contains(t, body, `meridian_jobs_total{status="ok",task="email:decision"} 2`)
	require.Contains(t, body, `meridian_jobs_total{status="error",task="roles:sweep"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *observability.Metrics

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	metrics.RecordJob("noop", "ok")

	rec = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func scrape(t *testing.T, metrics *observability.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}
