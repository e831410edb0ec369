package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptoaudit_analyses_enqueued_total",
		Help: "Total number of analysis requests placed on the processing queue.",
	})

	AnalysesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptoaudit_analyses_processed_total",
		Help: "Total number of analysis requests fully processed by the engine.",
	})

	AnalysesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptoaudit_analyses_dropped_total",
		Help: "Total number of analysis requests rejected due to a full queue.",
	})

	AnomalyFlags = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptoaudit_anomaly_flags_total",
		Help: "Total number of anomaly flags raised, labelled by method and severity.",
	}, []string{"method", "severity"})

	SectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptoaudit_section_errors_total",
		Help: "Analysis sections that did not produce a result, labelled by section and error kind.",
	}, []string{"section", "kind"})

	BenfordConclusions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptoaudit_benford_conclusions_total",
		Help: "Benford test outcomes, labelled by conclusion.",
	}, []string{"conclusion"})

	UnpricedPairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptoaudit_reconciliation_unpriced_pairs_total",
		Help: "Balance pairs reconciled without a USD price.",
	})

	ProfileReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptoaudit_profile_reloads_total",
		Help: "Threshold profile reload attempts, labelled by status.",
	}, []string{"status"})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cryptoaudit_analysis_duration_ms",
		Help:    "End-to-end analysis latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cryptoaudit_queue_utilization_ratio",
		Help: "Current analysis queue utilization (0–1).",
	})
)
