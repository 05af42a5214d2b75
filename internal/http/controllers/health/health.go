// Package health expone los endpoints de liveness y readiness.
package health

import (
	"context"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/janus-id/janus/internal/http/helpers"
	"github.com/janus-id/janus/internal/observability/logger"
)

// Pinger es cualquier dependencia que sepa reportar conectividad.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller responde healthz/readyz.
type Controller struct {
	deps map[string]Pinger

	// pings colapsa probes concurrentes sobre la misma dependencia: un
	// orquestador agresivo no multiplica los Ping contra la DB.
	pings singleflight.Group
}

// NewController arma el controller con las dependencias a chequear.
// Las keys nombran la dependencia en la respuesta ("db", "cache").
func NewController(deps map[string]Pinger) *Controller {
	return &Controller{deps: deps}
}

// Healthz maneja GET /healthz: proceso vivo, sin tocar dependencias.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz: verifica dependencias.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := make(map[string]string, len(c.deps))
	status := http.StatusOK

	for name, dep := range c.deps {
		if dep == nil {
			continue
		}
		_, err, _ := c.pings.Do(name, func() (any, error) {
			return nil, dep.Ping(ctx)
		})
		if err != nil {
			logger.From(ctx).Warn("readiness check failed",
				logger.Component("health"), logger.String("dependency", name), logger.Err(err))
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "degraded"
	}
	helpers.WriteJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}
