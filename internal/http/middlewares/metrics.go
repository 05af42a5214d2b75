package middlewares

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/janus-id/janus/internal/metrics"
)

// normalizePath colapsa segmentos variables para acotar la cardinalidad de labels.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if len(seg) >= 16 || looksLikeUUID(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeUUID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}

// WithMetrics instrumenta requests HTTP (contadores, latencia, inflight).
func WithMetrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := strings.ToUpper(r.Method)
			pathLabel := normalizePath(r.URL.Path)

			metrics.HTTPInflight.Inc()
			start := time.Now()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				metrics.HTTPInflight.Dec()
				metrics.HTTPRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())
				metrics.HTTPRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(rec.status)).Inc()
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
