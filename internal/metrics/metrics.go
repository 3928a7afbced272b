// Package metrics provides Prometheus metrics collection for the classifier
// service. It defines the prediction, model lifecycle and HTTP metrics that
// are exposed via the /metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	Predictions     *prometheus.CounterVec // Predictions served, by label
	Failures        *prometheus.CounterVec // Prediction failures, by reason
	Latency         prometheus.Histogram   // End-to-end predictor latency
	Confidence      prometheus.Histogram   // Confidence of served predictions (0..1)
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ModelAgeSeconds prometheus.Gauge // Age of the model that served the last prediction

	// Training metrics
	TrainingRuns     *prometheus.CounterVec // Training runs, by result
	TrainingDuration prometheus.Histogram
	ModelAccuracy    *prometheus.GaugeVec // Accuracy of the last trained model, by split

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // by route, method and status code
	HTTPDuration *prometheus.HistogramVec // by route and method
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		}, []string{"label"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed predictions",
		}, []string{"reason"}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		Confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_confidence",
			Help:    "Distribution of prediction confidence scores",
			Buckets: prometheus.LinearBuckets(0.5, 0.05, 11),
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_cache_hits_total",
			Help: "Total number of predictions served from cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_cache_misses_total",
			Help: "Total number of predictions computed after a cache miss",
		}),
		ModelAgeSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the active model in seconds",
		}),
		TrainingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of training runs",
		}, []string{"result"}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		ModelAccuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "model_accuracy",
			Help: "Accuracy of the most recently trained model",
		}, []string{"split"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}
