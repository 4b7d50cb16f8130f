package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for the forecast pipeline.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec // labels: provider, outcome={success,error,fallback}
	CacheLookups     *prometheus.CounterVec // labels: result={hit,miss}
	CommandsParsed   *prometheus.CounterVec // labels: command
	MessagesSent     prometheus.Counter
	SendsSuppressed  prometheus.Counter
	PushDuration     prometheus.Histogram
}

func collectors() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thunderbird",
			Name:      "provider_requests_total",
			Help:      "Weather provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thunderbird",
			Name:      "forecast_cache_lookups_total",
			Help:      "Forecast cache lookups by result.",
		}, []string{"result"}),
		CommandsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thunderbird",
			Name:      "commands_parsed_total",
			Help:      "Inbound commands by parsed type.",
		}, []string{"command"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thunderbird",
			Name:      "messages_sent_total",
			Help:      "Outbound SMS messages handed to the gateway.",
		}),
		SendsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thunderbird",
			Name:      "sends_suppressed_total",
			Help:      "Duplicate pushes suppressed by the idempotency hash.",
		}),
		PushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "thunderbird",
			Name:      "push_run_duration_seconds",
			Help:      "Duration of a complete scheduled push run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// NewMetrics creates and registers all collectors with the default registry.
func NewMetrics() *Metrics {
	m := collectors()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.CacheLookups,
		m.CommandsParsed,
		m.MessagesSent,
		m.SendsSuppressed,
		m.PushDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so parallel tests do
// not trip "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return collectors()
}
