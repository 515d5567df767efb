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
	// Swap metrics
	SwapsTotal    *prometheus.CounterVec
	SwapDuration  *prometheus.HistogramVec
	RiskDecisions *prometheus.CounterVec
	SpillAmount   prometheus.Histogram

	// Observer metrics
	EventsObserved        prometheus.Counter
	EventsStored          prometheus.Counter
	EventsDuplicate       prometheus.Counter
	FailedTransactions    prometheus.Counter
	EventProcessingErrors *prometheus.CounterVec
	HighestSlotSeen       prometheus.Gauge
	RPCCallLatency        *prometheus.HistogramVec

	// Bus metrics
	MessagesPublished *prometheus.CounterVec
	PublishErrors     *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Reporting and health
	ReportsGenerated        prometheus.Counter
	LastSuccessfulIngestion prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg. A nil reg
// uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "serum_swap"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Swap metrics
		SwapsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "swaps_total",
			Help:      "Total number of swaps by kind and result",
		}, []string{"kind", "result"}),
		SwapDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "duration_seconds",
			Help:      "Swap execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		RiskDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "decisions_total",
			Help:      "Total number of risk check decisions",
		}, []string{"decision"}),
		SpillAmount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "spill_native_units",
			Help:      "Unspent quote currency of transitive swaps",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 12),
		}),

		// Observer metrics
		EventsObserved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "events_observed_total",
			Help:      "Total number of DidSwap events decoded",
		}),
		EventsStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "events_stored_total",
			Help:      "Total number of DidSwap events stored",
		}),
		EventsDuplicate: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "events_duplicate_total",
			Help:      "Total number of DidSwap events already stored",
		}),
		FailedTransactions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "failed_transactions_total",
			Help:      "Total number of failed program transactions seen",
		}),
		EventProcessingErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "processing_errors_total",
			Help:      "Total number of event processing errors by stage",
		}, []string{"stage"}),
		HighestSlotSeen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Bus metrics
		MessagesPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "messages_published_total",
			Help:      "Total number of messages published by transport",
		}, []string{"transport"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "publish_errors_total",
			Help:      "Total number of publish failures by transport",
		}, []string{"transport"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),
		LastSuccessfulIngestion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last stored event",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordSwap records a finished swap attempt.
func RecordSwap(kind, result string, seconds float64) {
	DefaultMetrics.SwapsTotal.WithLabelValues(kind, result).Inc()
	DefaultMetrics.SwapDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordRiskDecision increments the risk decision counter.
func RecordRiskDecision(decision string) {
	DefaultMetrics.RiskDecisions.WithLabelValues(decision).Inc()
}

// RecordSpill observes the spill of a transitive swap.
func RecordSpill(amount uint64) {
	DefaultMetrics.SpillAmount.Observe(float64(amount))
}

// RecordEventError records an event processing error.
func RecordEventError(stage string) {
	DefaultMetrics.EventProcessingErrors.WithLabelValues(stage).Inc()
}

// UpdateHighestSlot raises the highest slot seen gauge.
func UpdateHighestSlot(slot int64) {
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordPublish records a bus publish attempt.
func RecordPublish(transport string, err error) {
	if err != nil {
		DefaultMetrics.PublishErrors.WithLabelValues(transport).Inc()
		return
	}
	DefaultMetrics.MessagesPublished.WithLabelValues(transport).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordReportGenerated increments the report counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}
