package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storePoolConns, storePoolEmptyAcquires) }

var (
	storePoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "job_store_pool_connections",
			Help: "Connections of the Postgres job record store, by state.",
		},
		[]string{"state"}, // acquired | idle | max
	)

	// Mirrors pgxpool's cumulative counter, hence a gauge.
	storePoolEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "job_store_pool_empty_acquires",
			Help: "Acquires that had to wait for a job record store connection since start.",
		},
	)
)

func SetStorePoolStats(acquired, idle, max int32, emptyAcquires int64) {
	storePoolConns.WithLabelValues("acquired").Set(float64(acquired))
	storePoolConns.WithLabelValues("idle").Set(float64(idle))
	storePoolConns.WithLabelValues("max").Set(float64(max))
	storePoolEmptyAcquires.Set(float64(emptyAcquires))
}
