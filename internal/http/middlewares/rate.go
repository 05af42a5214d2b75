package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/janus-id/janus/internal/http/errors"
	"github.com/janus-id/janus/internal/http/helpers"
	"github.com/janus-id/janus/internal/metrics"
	"github.com/janus-id/janus/internal/observability/logger"
	"github.com/janus-id/janus/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPRateKey genera una clave basada en IP y path.
func IPRateKey(r *http.Request) string {
	return helpers.ClientIP(r) + "|" + r.URL.Path
}

// RateLimitConfig configura el middleware de rate limiting.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc
	// Scope etiqueta la métrica de rechazos (ej: "login", "magic_link").
	Scope string
}

// WithRateLimit crea un middleware de rate limiting de ventana fija.
// Si el limiter falla, el request pasa (fail-open).
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			res, err := cfg.Limiter.Allow(r.Context(), key)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				if res.WindowTTL > 0 {
					resetAt := time.Now().Add(res.WindowTTL).Unix()
					w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
				}
				metrics.RateLimitedTotal.WithLabelValues(cfg.Scope).Inc()
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if res.WindowTTL > 0 {
				resetAt := time.Now().Add(res.WindowTTL).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
			}

			next.ServeHTTP(w, r)
		})
	}
}
