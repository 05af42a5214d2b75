// Package metrics define las métricas Prometheus del servicio. Paquete aparte
// para evitar ciclos de import entre HTTP y servicios.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once
	registerErr  error

	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests en vuelo",
	})

	// Autenticación
	// method: password|magic_link|passkey ; result: ok|failed|mfa_required
	LoginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Intentos de login por método y resultado",
	}, []string{"method", "result"})

	// method: totp|recovery_code ; result: ok|failed
	MFAChallengesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_mfa_challenges_total",
		Help: "Desafíos MFA resueltos por método y resultado",
	}, []string{"method", "result"})

	MagicLinksIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_magic_links_issued_total",
		Help: "Enlaces mágicos emitidos",
	})

	SessionsRevokedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_sessions_revoked_total",
		Help: "Sesiones revocadas por motivo",
	}, []string{"reason"}) // logout|logout_others|password_change

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_rate_limited_total",
		Help: "Requests rechazadas por rate limit",
	}, []string{"scope"})
)

// Register registra todas las métricas y devuelve el handler para /metrics.
func Register(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerOnce.Do(func() {
		collectors := []prometheus.Collector{
			HTTPRequestsTotal, HTTPRequestDuration, HTTPInflight,
			LoginAttemptsTotal, MFAChallengesTotal, MagicLinksIssuedTotal,
			SessionsRevokedTotal, RateLimitedTotal,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					registerErr = err
					return
				}
			}
		}
	})
	if registerErr != nil {
		return nil, registerErr
	}
	return promhttp.Handler(), nil
}
