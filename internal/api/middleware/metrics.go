// metrics.go — Prometheus HTTP метрики Delivery Module.
// Бизнес-метрики (dm_uploads_total, dm_reaper_* и др.) регистрируются
// в соответствующих пакетах и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_http_requests_total",
			Help: "Общее количество HTTP-запросов к Delivery Module",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Delivery Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware собирает количество и длительность запросов.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов (id → {id} против
			// взрывного роста кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет идентификаторы в пути на плейсхолдеры.
// /api/v1/orders/ord-123/deliver → /api/v1/orders/{orderId}/deliver
func normalizePath(path string) string {
	switch {
	case path == "/health/live", path == "/health/ready", path == "/metrics":
		return path
	case path == "/api/v1/files/upload", path == "/api/v1/orders",
		path == "/api/v1/checkout-sessions", path == "/api/v1/openapi.json":
		return path
	case strings.HasPrefix(path, "/api/v1/orders/"):
		rest := path[len("/api/v1/orders/"):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/api/v1/orders/{orderId}" + rest[i:]
		}
		return "/api/v1/orders/{orderId}"
	}
	return path
}
