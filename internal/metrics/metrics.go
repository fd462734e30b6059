package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics for production monitoring
var (
	// Ingestion metrics
	SamplesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hostwatch_samples_ingested_total",
			Help: "Total number of metric samples written to the store",
		},
	)

	SamplesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hostwatch_samples_dropped_total",
			Help: "Total number of samples dropped under write backpressure",
		},
	)

	// Detection metrics
	DetectionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostwatch_detection_runs_total",
			Help: "Total number of detection runs",
		},
		[]string{"status"}, // ok/error/skipped
	)

	AnomaliesFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hostwatch_anomalies_flagged_total",
			Help: "Total number of samples flagged anomalous",
		},
	)

	DetectionScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hostwatch_last_anomaly_score",
			Help: "Anomaly score of the most recent sample (lower = more anomalous)",
		},
	)

	// Training metrics
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostwatch_training_runs_total",
			Help: "Total number of training runs",
		},
		[]string{"status"}, // ok/error
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hostwatch_training_duration_seconds",
			Help:    "Model training duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		},
	)

	CalibratedThreshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hostwatch_calibrated_threshold",
			Help: "Currently serving calibrated score threshold",
		},
	)

	// Alerting metrics
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostwatch_alerts_fired_total",
			Help: "Total number of alerts fired",
		},
		[]string{"rule", "severity"},
	)

	// Storage metrics
	SamplesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hostwatch_samples_pruned_total",
			Help: "Total number of samples removed by retention pruning",
		},
	)
)
