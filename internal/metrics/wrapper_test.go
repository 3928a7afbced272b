package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestWrapper() (*Metrics, *MetricsWrapper) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	return metrics, NewWrapper(metrics)
}

func TestNewWrapper(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_Predictions(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	wrapper.PredictionsInc("Benign")
	wrapper.PredictionsInc("Benign")
	wrapper.PredictionsInc("Malignant")

	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("Benign")); v != 2 {
		t.Errorf("Expected 2 benign predictions, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("Malignant")); v != 1 {
		t.Errorf("Expected 1 malignant prediction, got %f", v)
	}
}

func TestMetricsWrapper_Failures(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	wrapper.FailuresInc("invalid_input")
	wrapper.FailuresInc("not_loaded")
	wrapper.FailuresInc("invalid_input")

	if v := testutil.ToFloat64(metrics.Failures.WithLabelValues("invalid_input")); v != 2 {
		t.Errorf("Expected 2 invalid_input failures, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.Failures.WithLabelValues("not_loaded")); v != 1 {
		t.Errorf("Expected 1 not_loaded failure, got %f", v)
	}
}

func TestMetricsWrapper_Cache(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	wrapper.CacheHitsInc()
	wrapper.CacheMissesInc()
	wrapper.CacheMissesInc()

	if v := testutil.ToFloat64(metrics.CacheHits); v != 1 {
		t.Errorf("Expected 1 cache hit, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.CacheMisses); v != 2 {
		t.Errorf("Expected 2 cache misses, got %f", v)
	}
}

func TestMetricsWrapper_Gauges(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	wrapper.ModelAgeSet(42)
	if v := testutil.ToFloat64(metrics.ModelAgeSeconds); v != 42 {
		t.Errorf("Expected model age 42, got %f", v)
	}

	wrapper.ModelAccuracySet("train", 0.98)
	wrapper.ModelAccuracySet("test", 0.96)
	wrapper.ModelAccuracySet("test", 0.97)
	if v := testutil.ToFloat64(metrics.ModelAccuracy.WithLabelValues("train")); v != 0.98 {
		t.Errorf("Expected train accuracy 0.98, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ModelAccuracy.WithLabelValues("test")); v != 0.97 {
		t.Errorf("Expected test accuracy 0.97, got %f", v)
	}
}

func TestMetricsWrapper_Training(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	wrapper.TrainingRunsInc(true)
	wrapper.TrainingRunsInc(false)
	wrapper.TrainingRunsInc(true)
	wrapper.TrainingDurationObserve(0.5)

	if v := testutil.ToFloat64(metrics.TrainingRuns.WithLabelValues("success")); v != 2 {
		t.Errorf("Expected 2 successful runs, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.TrainingRuns.WithLabelValues("failure")); v != 1 {
		t.Errorf("Expected 1 failed run, got %f", v)
	}
	if n := testutil.CollectAndCount(metrics.TrainingDuration); n != 1 {
		t.Errorf("Expected 1 training duration series, got %d", n)
	}
}

func TestMetricsWrapper_Histograms(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	// Should not panic
	wrapper.LatencyObserve(0.002)
	wrapper.ConfidenceObserve(0.91)

	if n := testutil.CollectAndCount(metrics.Latency); n != 1 {
		t.Errorf("Expected 1 latency series, got %d", n)
	}
	if n := testutil.CollectAndCount(metrics.Confidence); n != 1 {
		t.Errorf("Expected 1 confidence series, got %d", n)
	}
}

func TestMetricsWrapper_HTTPObserve(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	wrapper.HTTPObserve("/api/predict", "POST", 200, 0.01)
	wrapper.HTTPObserve("/api/predict", "POST", 400, 0.01)
	wrapper.HTTPObserve("/api/predict", "POST", 200, 0.02)

	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/predict", "POST", "200")); v != 2 {
		t.Errorf("Expected 2 successful requests, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/predict", "POST", "400")); v != 1 {
		t.Errorf("Expected 1 bad request, got %f", v)
	}
	if n := testutil.CollectAndCount(metrics.HTTPDuration); n != 1 {
		t.Errorf("Expected 1 duration series, got %d", n)
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	// Two registries must not collide on metric names.
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())

	a.CacheHits.Inc()
	if v := testutil.ToFloat64(b.CacheHits); v != 0 {
		t.Errorf("Expected isolated registries, got %f", v)
	}
}
