package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(deliverySessionsTotal, deliverySessionsActive, deliveryPollRounds, orphanSweepsTotal, orphansResumedTotal)
}

var (
	deliverySessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_sessions_total",
			Help: "Polling sessions finished, labeled by outcome.",
		},
		[]string{"outcome"}, // completed, failed_items, timeout, error, interrupted
	)

	deliverySessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_sessions_active",
			Help: "Polling sessions currently running.",
		},
	)

	deliveryPollRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "delivery_poll_rounds",
			Help:    "Status polls a session needed before it ended.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160, 240},
		},
	)

	orphanSweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orphan_sweeps_total",
			Help: "Orphan sweeps run, by result.",
		},
		[]string{"result"}, // ok, error, skipped
	)

	orphansResumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orphan_jobs_resumed_total",
			Help: "Stale job records picked up again by the sweeper.",
		},
	)
)

func IncDeliverySession(outcome string) {
	deliverySessionsTotal.WithLabelValues(norm(outcome)).Inc()
}

func SessionStarted()  { deliverySessionsActive.Inc() }
func SessionFinished() { deliverySessionsActive.Dec() }

func ObservePollRounds(n int) {
	deliveryPollRounds.Observe(float64(n))
}

func ObserveOrphanSweep(result string, resumed int) {
	orphanSweepsTotal.WithLabelValues(norm(result)).Inc()
	orphansResumedTotal.Add(float64(resumed))
}
