package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waterquality_predictions_saved_total",
		Help: "Total number of prediction records persisted.",
	})
	PredictionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waterquality_predictions_failed_total",
		Help: "Total number of prediction requests that failed.",
	})
	InferenceRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waterquality_inference_retries_total",
		Help: "Total number of ML service calls that were retried.",
	})
	InferenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waterquality_inference_failures_total",
		Help: "Total number of ML service calls that exhausted all retries.",
	})
	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "waterquality_inference_duration_seconds",
		Help:    "Duration of individual ML service calls.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})
)
