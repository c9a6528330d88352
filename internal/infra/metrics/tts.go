package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ttsRequestsTotal) }

var ttsRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tts_requests_total",
		Help: "Calls to the TTS service, by operation and result.",
	},
	[]string{"op", "result"}, // result: ok, error
)

func IncTTSRequest(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ttsRequestsTotal.WithLabelValues(norm(op), result).Inc()
}
