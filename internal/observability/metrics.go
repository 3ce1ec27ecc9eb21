package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ainur20/weather-currency-bot/internal/fetcher"
)

// Metrics holds the Prometheus instruments for the bot core.
type Metrics struct {
	UpdatesReceived prometheus.Counter
	CommandsHandled *prometheus.CounterVec   // labels: command
	FetchErrors     *prometheus.CounterVec   // labels: provider, kind
	FetchDuration   *prometheus.HistogramVec // labels: provider
	RecordsAppended *prometheus.CounterVec   // labels: kind, outcome
}

// NewMetrics creates and registers all bot metrics with the default registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		UpdatesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wcbot",
			Name:      "updates_received_total",
			Help:      "Total updates received from the Bot API.",
		}),
		CommandsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wcbot",
			Name:      "commands_handled_total",
			Help:      "Handled interactions by command.",
		}, []string{"command"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wcbot",
			Name:      "fetch_errors_total",
			Help:      "Provider fetch failures by provider and failure kind.",
		}, []string{"provider", "kind"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wcbot",
			Name:      "fetch_duration_seconds",
			Help:      "Provider fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		RecordsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wcbot",
			Name:      "records_appended_total",
			Help:      "Request log writes by record kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	prometheus.MustRegister(
		m.UpdatesReceived,
		m.CommandsHandled,
		m.FetchErrors,
		m.FetchDuration,
		m.RecordsAppended,
	)

	return m
}

// NewMetricsForTesting creates Metrics without touching the default registry
// to avoid "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		UpdatesReceived: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wcbot", Name: "updates_received_total"}),
		CommandsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "wcbot", Name: "commands_handled_total"}, []string{"command"}),
		FetchErrors:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "wcbot", Name: "fetch_errors_total"}, []string{"provider", "kind"}),
		FetchDuration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "wcbot", Name: "fetch_duration_seconds"}, []string{"provider"}),
		RecordsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "wcbot", Name: "records_appended_total"}, []string{"kind", "outcome"}),
	}
}

// ErrorKind maps a fetch failure onto its metric label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, fetcher.ErrCityNotFound), errors.Is(err, fetcher.ErrCurrencyNotFound):
		return "not_found"
	case errors.Is(err, fetcher.ErrProviderUnreachable):
		return "unreachable"
	case errors.Is(err, fetcher.ErrProviderStatus):
		return "status"
	case errors.Is(err, fetcher.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, fetcher.ErrNotConfigured):
		return "not_configured"
	default:
		return "other"
	}
}
