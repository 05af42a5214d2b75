package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DBPoolCollector expone gauges del pool de PostgreSQL.
type DBPoolCollector struct {
	pool func() *pgxpool.Pool

	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
}

// NewDBPoolCollector crea el collector. pool puede devolver nil si el server
// corre sin base de datos; en ese caso no se emiten métricas.
func NewDBPoolCollector(pool func() *pgxpool.Pool) *DBPoolCollector {
	return &DBPoolCollector{
		pool:         pool,
		acquiredDesc: prometheus.NewDesc("pg_pool_acquired", "Conexiones adquiridas", nil, nil),
		idleDesc:     prometheus.NewDesc("pg_pool_idle", "Conexiones inactivas", nil, nil),
		totalDesc:    prometheus.NewDesc("pg_pool_total", "Conexiones totales", nil, nil),
	}
}

func (c *DBPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
}

func (c *DBPoolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	pool := c.pool()
	if pool == nil {
		return
	}
	stat := pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
}
