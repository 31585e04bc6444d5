package metrics

import "github.com/prometheus/client_golang/prometheus"

// Discovery pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prethrift",
			Name:      "search_requests_total",
			Help:      "Total number of search requests by gate outcome",
		},
		[]string{"status"}, // "ok" / "ambiguous" / "off_topic" / "error"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prethrift",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"modality"}, // "text" / "image" / "both"
	)

	SearchDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prethrift",
			Name:      "search_degraded_total",
			Help:      "Search responses carrying a degraded flag",
		},
		[]string{"flag"},
	)

	GuardrailOverridesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prethrift",
			Name:      "guardrail_overrides_total",
			Help:      "Off-topic verdicts downgraded by the force flag",
		},
	)

	ExtractionAssistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prethrift",
			Name:      "extraction_assist_total",
			Help:      "Assisted extraction outcomes",
		},
		[]string{"status"}, // "ok" / "failed"
	)

	FeedbackEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prethrift",
			Name:      "feedback_events_total",
			Help:      "Feedback events by action and dedupe outcome",
		},
		[]string{"action", "applied"}, // applied: "true" / "false"
	)

	GarmentsIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prethrift",
			Name:      "garments_indexed_total",
			Help:      "Garments ingested into the catalog",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers discovery pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchDegradedTotal)
	prometheus.MustRegister(GuardrailOverridesTotal)
	prometheus.MustRegister(ExtractionAssistTotal)
	prometheus.MustRegister(FeedbackEventsTotal)
	prometheus.MustRegister(GarmentsIndexedTotal)
	pipelineMetricsRegistered = true
}
