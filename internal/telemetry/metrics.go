package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	QuotesTotal   *prometheus.CounterVec
	QuoteDuration *prometheus.HistogramVec
	ModuleErrors  *prometheus.CounterVec
	OptionsQuoted *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QuotesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipquote_quotes_total",
				Help: "Total number of shipping quote computations by store, module, and outcome",
			},
			[]string{"store", "module", "outcome"},
		),
		QuoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shipquote_quote_duration_seconds",
				Help:    "Shipping quote computation duration in seconds by module",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"module"},
		),
		ModuleErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipquote_module_errors_total",
				Help: "Total rate module and processor errors by module and error type",
			},
			[]string{"module", "error_type"},
		),
		OptionsQuoted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipquote_options_quoted_total",
				Help: "Total finalized shipping options by store, module, and option code",
			},
			[]string{"store", "module", "option"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipquote_http_requests_total",
				Help: "Total HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
	}
}

// RecordQuote records a quote computation.
func (m *Metrics) RecordQuote(store, module, outcome string, duration float64) {
	if m == nil {
		return
	}
	m.QuotesTotal.WithLabelValues(store, module, outcome).Inc()
	m.QuoteDuration.WithLabelValues(module).Observe(duration)
}

// RecordError records a module or processor error.
func (m *Metrics) RecordError(module, errorType string) {
	if m == nil {
		return
	}
	m.ModuleErrors.WithLabelValues(module, errorType).Inc()
}

// RecordOption records a finalized option.
func (m *Metrics) RecordOption(store, module, option string) {
	if m == nil {
		return
	}
	m.OptionsQuoted.WithLabelValues(store, module, option).Inc()
}

// RecordHTTP records a served request.
func (m *Metrics) RecordHTTP(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
}
