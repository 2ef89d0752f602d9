package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/haasonsaas/taskgraph/internal/observability"
)

func requestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := observability.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger.Info(ctx, "http request started", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.Info(ctx, "http request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func metricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method, r.URL.Path, strconv.Itoa(ww.Status()),
			).Observe(time.Since(start).Seconds())
		})
	}
}
