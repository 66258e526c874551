package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// alert pipeline and notification dispatcher.
type Metrics struct {
	CyclesTotal    prometheus.Counter
	CycleDuration  prometheus.Histogram
	CycleDeadline  prometheus.Counter
	FetchErrors    *prometheus.CounterVec // labels: zone
	AlertsActive   prometheus.Gauge
	Transitions    *prometheus.CounterVec // labels: kind

	// Dispatch metrics.
	DispatchJobs         *prometheus.CounterVec   // labels: channel, outcome
	DeliveryDuration     *prometheus.HistogramVec // labels: channel
	RateLimited          prometheus.Counter
	QuietHoursSuppressed prometheus.Counter

	// Description/synthesis metrics.
	SynthesisRequests *prometheus.CounterVec // labels: outcome={success,error,cache_hit}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.CycleDeadline,
		m.FetchErrors,
		m.AlertsActive,
		m.Transitions,
		m.DispatchJobs,
		m.DeliveryDuration,
		m.RateLimited,
		m.QuietHoursSuppressed,
		m.SynthesisRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_dispatch",
			Name:      "cycles_total",
			Help:      "Total completed poll cycles.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storm_dispatch",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-classify-transition-dispatch cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
		}),
		CycleDeadline: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_dispatch",
			Name:      "cycle_deadline_exceeded_total",
			Help:      "Cycles that hit their deadline before all zones finished.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_dispatch",
			Name:      "fetch_errors_total",
			Help:      "Zone fetches that exhausted their retries, by zone.",
		}, []string{"zone"}),
		AlertsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_dispatch",
			Name:      "alerts_active",
			Help:      "Alerts currently in effect in the published snapshot.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_dispatch",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions emitted, by kind.",
		}, []string{"kind"}),
		DispatchJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_dispatch",
			Name:      "dispatch_jobs_total",
			Help:      "Dispatch jobs by channel and terminal outcome.",
		}, []string{"channel", "outcome"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storm_dispatch",
			Name:      "delivery_duration_seconds",
			Help:      "Channel delivery attempt duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_dispatch",
			Name:      "rate_limited_total",
			Help:      "Jobs skipped because a subscriber hit a rolling cap.",
		}),
		QuietHoursSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_dispatch",
			Name:      "quiet_hours_suppressed_total",
			Help:      "Jobs suppressed by a subscriber quiet-hours window.",
		}),
		SynthesisRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_dispatch",
			Name:      "synthesis_requests_total",
			Help:      "Speech synthesis requests by outcome.",
		}, []string{"outcome"}),
	}
}
