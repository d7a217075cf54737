// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram

	// Consensus metrics
	OpinionsGathered  *prometheus.CounterVec
	JudgeAbstentions  *prometheus.CounterVec
	DecisionsByAction *prometheus.CounterVec

	// Risk metrics
	RiskRejections *prometheus.CounterVec
	TradeSizeUSD   prometheus.Histogram
	DailyPnLUSD    prometheus.Gauge

	// Execution metrics
	VenueAttempts   *prometheus.CounterVec
	VenueFailures   *prometheus.CounterVec
	OutcomesTotal   *prometheus.CounterVec
	RealizedCostUSD prometheus.Histogram

	// Resolver metrics
	ResolutionsTotal *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered on
// the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics on the given registerer. Tests use it
// with a fresh registry to avoid duplicate registration.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "dexpilot"
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycles_total",
			Help:      "Total number of decision cycles by terminal status",
		}, []string{"status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycle_duration_seconds",
			Help:      "Decision cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}),

		OpinionsGathered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "opinions_gathered_total",
			Help:      "Total number of opinions collected by source",
		}, []string{"source"}),
		JudgeAbstentions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "judge_abstentions_total",
			Help:      "Total number of judge timeouts or failures by source",
		}, []string{"source"}),
		DecisionsByAction: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "decisions_total",
			Help:      "Total number of consensus decisions by action",
		}, []string{"action"}),

		RiskRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "rejections_total",
			Help:      "Total number of decisions rejected by the risk guard, by reason",
		}, []string{"reason"}),
		TradeSizeUSD: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "trade_size_usd",
			Help:      "Approved trade size in USD",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		DailyPnLUSD: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "daily_pnl_usd",
			Help:      "Cumulative realized P&L for the current UTC day in USD",
		}),

		VenueAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "venue_attempts_total",
			Help:      "Total number of swap attempts by chain and dex",
		}, []string{"chain", "dex"}),
		VenueFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "venue_failures_total",
			Help:      "Total number of failed swap attempts by chain and dex",
		}, []string{"chain", "dex"}),
		OutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "outcomes_total",
			Help:      "Total number of execution outcomes by status",
		}, []string{"status"}),
		RealizedCostUSD: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "realized_cost_usd",
			Help:      "Realized execution cost per filled trade in USD",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 25},
		}),

		ResolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of token resolutions by result kind",
		}, []string{"kind"}),

		LastSuccessfulCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last cycle that produced a fill",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
