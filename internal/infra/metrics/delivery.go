package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(artifactsDeliveredTotal, artifactBytesTotal) }

var (
	artifactsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifacts_delivered_total",
			Help: "Artifacts sent to chats and acknowledged upstream, by kind.",
		},
		[]string{"kind"},
	)

	artifactBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_bytes_total",
			Help: "Bytes of artifacts sent to chats, by kind.",
		},
		[]string{"kind"},
	)
)

func ObserveArtifactDelivered(kind string, size int) {
	artifactsDeliveredTotal.WithLabelValues(norm(kind)).Inc()
	artifactBytesTotal.WithLabelValues(norm(kind)).Add(float64(size))
}
