package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(modelListLookupsTotal) }

// modelListLookupsTotal shows how often the settings menu reaches the TTS
// service for model lists.
var modelListLookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "model_list_lookups_total",
		Help: "Model list lookups for the settings menu, by source.",
	},
	[]string{"source"}, // cache | fetched | shared (joined an in-flight fetch)
)

func IncModelListLookup(source string) {
	modelListLookupsTotal.WithLabelValues(norm(source)).Inc()
}
