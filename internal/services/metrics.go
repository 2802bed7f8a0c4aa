package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the learning engine. Exposed on the shared
// /metrics endpoint.
var (
	feedbackProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_feedback_processed_total",
		Help: "Feedback submissions accepted, by signal.",
	}, []string{"signal"})

	feedbackFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atelier_feedback_failed_total",
		Help: "Feedback submissions rejected or failed.",
	})

	preferenceUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_preference_updates_total",
		Help: "Preference snapshot recomputes persisted, by scope (user/global).",
	}, []string{"scope"})

	objectsDeprecatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atelier_objects_deprecated_total",
		Help: "Knowledge objects deprecated by the sweep.",
	})

	retentionDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_retention_deleted_total",
		Help: "Rows removed by the retention sweep, by table.",
	}, []string{"table"})

	feedbackProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atelier_feedback_processing_seconds",
		Help:    "End-to-end latency of ProcessFeedback.",
		Buckets: prometheus.DefBuckets,
	})
)
