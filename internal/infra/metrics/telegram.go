package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		telegramUpdatesReceivedTotal,
		telegramRateLimitTriggeredTotal,
		jobsSubmittedTotal,
	)
}

var (
	telegramUpdatesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_received_total",
			Help: "Counts incoming messages and callbacks from chats.",
		},
		[]string{"kind"}, // message, callback
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times chats have been rate-limited.",
		},
	)

	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tts_jobs_submitted_total",
			Help: "Jobs submitted to the TTS service, by result.",
		},
		[]string{"result"},
	)
)

func IncTelegramUpdate(kind string) {
	telegramUpdatesReceivedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncJobSubmitted(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	jobsSubmittedTotal.WithLabelValues(result).Inc()
}
